package services

import (
	"log"
	"math"
	"math/big"
	"sort"

	"github.com/opsdash/shortage/pkg/domain/entities"
)

// Apportion splits an aggregate stock total across group members using the
// largest-remainder (Hamilton) method, weighted by each member's shortage
// quantity. The result has one non-negative entry per weight and sums to
// total exactly.
//
// The computation is done in integer arithmetic: for member i the exact
// share is total*w_i/sum(w), so floor(share) = total*w_i / sum(w) and the
// fractional parts compare as total*w_i mod sum(w). The leftover units go
// to the largest fractions, ties broken by original index, which makes the
// split deterministic. Quantities whose products do not fit in 64 bits
// take an arbitrary-precision path with identical semantics.
func Apportion(total entities.Quantity, weights []entities.Quantity) []entities.Quantity {
	result := make([]entities.Quantity, len(weights))
	if len(weights) == 0 || total <= 0 {
		return result
	}

	var sumWeights entities.Quantity
	for _, w := range weights {
		if w <= 0 {
			continue
		}
		if sumWeights > math.MaxInt64-w {
			return apportionBig(total, weights)
		}
		sumWeights += w
	}
	if sumWeights == 0 {
		// A group whose members all have zero shortage should have been
		// filtered out of the working set before apportionment.
		log.Printf("apportion: zero total weight for total=%d across %d members, returning all zeros", total, len(weights))
		return result
	}
	if total > math.MaxInt64/sumWeights {
		// total*w can overflow for the heaviest member.
		return apportionBig(total, weights)
	}

	remainders := make([]entities.Quantity, len(weights))
	allocated := entities.Quantity(0)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		exact := total * w
		result[i] = exact / sumWeights
		remainders[i] = exact % sumWeights
		allocated += result[i]
	}

	leftover := total - allocated

	// Rank members by fractional part descending, original index ascending.
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})

	for i := entities.Quantity(0); i < leftover; i++ {
		result[order[i]]++
	}

	return result
}

// apportionBig is the arbitrary-precision fallback for inputs whose
// intermediate products exceed int64. Every floor share is bounded by
// total, so the results themselves always fit.
func apportionBig(total entities.Quantity, weights []entities.Quantity) []entities.Quantity {
	result := make([]entities.Quantity, len(weights))

	sumWeights := new(big.Int)
	for _, w := range weights {
		if w > 0 {
			sumWeights.Add(sumWeights, big.NewInt(int64(w)))
		}
	}

	bigTotal := big.NewInt(int64(total))
	remainders := make([]*big.Int, len(weights))
	allocated := entities.Quantity(0)
	for i, w := range weights {
		remainders[i] = new(big.Int)
		if w <= 0 {
			continue
		}
		exact := new(big.Int).Mul(bigTotal, big.NewInt(int64(w)))
		quo, rem := new(big.Int).QuoRem(exact, sumWeights, new(big.Int))
		result[i] = entities.Quantity(quo.Int64())
		remainders[i] = rem
		allocated += result[i]
	}

	leftover := total - allocated

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].Cmp(remainders[order[b]]) > 0
	})

	for i := entities.Quantity(0); i < leftover; i++ {
		result[order[i]]++
	}

	return result
}
