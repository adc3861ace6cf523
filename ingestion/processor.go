// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"

	"github.com/berdachuk/medexpertmatch/core"
)

// processor enriches a batch of stored cases. Stages run in order on the
// same batch, so later stages see the fields earlier ones filled in.
type processor interface {
	process(ctx context.Context, cases []*core.Case) error
}

// Describer produces the summary text of a case.
type Describer interface {
	Describe(ctx context.Context, c *core.Case) string
}

// DescriberFunc adapts a function to Describer.
type DescriberFunc func(ctx context.Context, c *core.Case) string

func (f DescriberFunc) Describe(ctx context.Context, c *core.Case) string { return f(ctx, c) }
