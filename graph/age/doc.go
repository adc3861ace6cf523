// Package age implements graph.Provider and graph.Writer on Apache AGE.
//
// Statements are Cypher; the client wraps them in ag_catalog.cypher() and
// passes parameters as a single agtype map:
//
//	client, err := age.Connect(ctx, dsn, age.WithGraphName("medexpertmatch_graph"))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	src, err := graph.NewCypherSource(client)
package age
