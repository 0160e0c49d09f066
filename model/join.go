package model

import "sort"

// JoinTableColumns orders the two sides of an implicit many-to-many
// relation by participant model name (ties broken by field name), and
// returns which field is bound to the "A" column versus the "B" column.
// Implicit join tables are deterministic regardless of which side
// initiated the write.
type JoinTableColumns struct {
	AModel, AField string
	BModel, BField string
}

// ResolveJoinTable computes the canonical (A, B) ordering for a many-to-many
// relation given the owning model/field on each side.
func ResolveJoinTable(modelA, fieldA, modelB, fieldB string) JoinTableColumns {
	pairs := []struct{ model, field string }{
		{modelA, fieldA},
		{modelB, fieldB},
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].model != pairs[j].model {
			return pairs[i].model < pairs[j].model
		}
		return pairs[i].field < pairs[j].field
	})
	return JoinTableColumns{
		AModel: pairs[0].model, AField: pairs[0].field,
		BModel: pairs[1].model, BField: pairs[1].field,
	}
}

// JoinTableName returns the deterministic name of the implicit join table,
// "<ModelA>_<ModelB>" with the participants in lexicographic order.
func JoinTableName(modelA, modelB string) string {
	if modelA <= modelB {
		return modelA + "_" + modelB
	}
	return modelB + "_" + modelA
}
