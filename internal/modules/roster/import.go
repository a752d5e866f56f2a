package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aristath/tradplan/internal/domain"
)

// Import reads a JSON array of translators from r and upserts each one.
// The whole file is validated before anything is written.
func Import(ctx context.Context, repo Repository, r io.Reader) (int, error) {
	var translators []*domain.Translator
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&translators); err != nil {
		return 0, domain.InvalidInput("invalid roster file: %v", err)
	}

	seen := make(map[string]bool, len(translators))
	for i, t := range translators {
		if t == nil {
			return 0, domain.InvalidInput("roster entry %d is null", i)
		}
		if err := Validate(t); err != nil {
			return 0, err
		}
		if seen[t.ID] {
			return 0, domain.InvalidInput("translator %s appears twice", t.ID)
		}
		seen[t.ID] = true
	}

	for _, t := range translators {
		if err := repo.Upsert(ctx, t); err != nil {
			return 0, fmt.Errorf("failed to import translator %s: %w", t.ID, err)
		}
	}
	return len(translators), nil
}
