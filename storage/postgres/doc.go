// Package postgres implements the storage repositories on PostgreSQL through
// database/sql and lib/pq.
//
// Case embeddings live in a pgvector column and doctor similarity is
// computed in SQL with the cosine distance operator. LexicalIndex uses the
// built-in full-text search over treated cases.
//
//	store, err := postgres.Open(ctx, dsn)
//	if err != nil {
//	    return err
//	}
//	if err := store.Migrate(ctx); err != nil {
//	    return err
//	}
//	repos := store.Repositories()
//	defer repos.Close()
package postgres
