package convert

import (
	"fmt"
	"log/slog"

	"github.com/i2y/schemair/internal/classify"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/naming"
)

// Bucket is the working group of operations associated with one resource
// name before assembly.
type Bucket struct {
	Resource string
	slots    map[classify.Category][]candidate
}

type candidate struct {
	op     Operation
	byVerb bool
}

// Primary returns the operation bound to category c: the first one whose
// name matched a verb alias, or the first verb-classified one if none did.
func (b *Bucket) Primary(c classify.Category) (Operation, bool) {
	cands := b.slots[c]
	if len(cands) == 0 {
		return Operation{}, false
	}
	return cands[b.primaryIndex(c)].op, true
}

// Additional returns the operations of category c that lost the primary
// slot, in encounter order.
func (b *Bucket) Additional(c classify.Category) []Operation {
	cands := b.slots[c]
	if len(cands) < 2 {
		return nil
	}
	pi := b.primaryIndex(c)
	out := make([]Operation, 0, len(cands)-1)
	for i, cand := range cands {
		if i != pi {
			out = append(out, cand.op)
		}
	}
	return out
}

func (b *Bucket) primaryIndex(c classify.Category) int {
	for i, cand := range b.slots[c] {
		if !cand.byVerb {
			return i
		}
	}
	return 0
}

// Empty reports whether no category has an operation.
func (b *Bucket) Empty() bool {
	for _, c := range classify.Categories {
		if len(b.slots[c]) > 0 {
			return false
		}
	}
	return true
}

// BucketOperations classifies ops and groups them by resource, in order of
// first encounter. Operations that cannot be classified, or that yield no
// resource name, are skipped. Every operation that loses a primary slot is
// reported with a SupplementaryOperation warning.
func BucketOperations(ops []Operation, log *slog.Logger) ([]*Bucket, []domain.Warning) {
	var order []*Bucket
	byName := make(map[string]*Bucket)

	for _, op := range ops {
		cl := classify.Classify(op.ID, op.Verb)
		if op.VerbFirst {
			cl = classify.ClassifyVerbFirst(op.ID, op.Verb)
		}
		if cl.Category == classify.Unclassified {
			log.Debug("Skipping unclassified operation.", slog.String("operation", op.ID))
			continue
		}
		resource := cl.Resource
		if op.ResourceHint != "" {
			resource = naming.Singularize(naming.Normalize(op.ResourceHint))
		}
		if resource == "" {
			log.Debug("Skipping operation without resource name.", slog.String("operation", op.ID))
			continue
		}
		b, ok := byName[resource]
		if !ok {
			b = &Bucket{Resource: resource, slots: make(map[classify.Category][]candidate)}
			byName[resource] = b
			order = append(order, b)
		}
		b.slots[cl.Category] = append(b.slots[cl.Category], candidate{op: op, byVerb: cl.ByVerb})
		log.Debug("Classified operation.",
			slog.String("operation", op.ID),
			slog.String("category", cl.Category.String()),
			slog.String("resource", resource),
			slog.Bool("by_verb", cl.ByVerb))
	}

	var warnings []domain.Warning
	for _, b := range order {
		for _, c := range classify.Categories {
			primary, ok := b.Primary(c)
			if !ok {
				continue
			}
			for _, extra := range b.Additional(c) {
				warnings = append(warnings, domain.Warning{
					Kind:     domain.WarningSupplementaryOperation,
					Resource: b.Resource,
					Message: fmt.Sprintf("%s also classifies as %s; kept as additional operation of %s",
						extra.ID, c, primary.ID),
				})
			}
		}
	}
	return order, warnings
}
