package rollup

import "github.com/rpattn/rollup/internal/domain"

// Join performs a full outer join of invoices and parties on counter_party.
// Every invoice row is paired with each party row sharing its key, so
// duplicate party entries duplicate invoice rows. Invoices without a party
// keep a nil tier; parties without an invoice produce facts whose
// invoice-side fields are nil. Row order carries no meaning downstream.
func Join(invoices []domain.Invoice, parties []domain.Party) []domain.InvoiceFact {
	tiersByParty := make(map[string][]int64, len(parties))
	for _, party := range parties {
		tiersByParty[party.CounterParty] = append(tiersByParty[party.CounterParty], party.Tier)
	}

	facts := make([]domain.InvoiceFact, 0, len(invoices))
	matched := make(map[string]struct{}, len(parties))
	for _, invoice := range invoices {
		legalEntity := invoice.LegalEntity
		rating := invoice.Rating
		status := invoice.Status
		value := invoice.Value

		tiers, ok := tiersByParty[invoice.CounterParty]
		if !ok {
			facts = append(facts, domain.InvoiceFact{
				LegalEntity:  &legalEntity,
				CounterParty: invoice.CounterParty,
				Rating:       &rating,
				Status:       &status,
				Value:        &value,
			})
			continue
		}
		matched[invoice.CounterParty] = struct{}{}
		for _, tier := range tiers {
			tierValue := tier
			facts = append(facts, domain.InvoiceFact{
				LegalEntity:  &legalEntity,
				CounterParty: invoice.CounterParty,
				Rating:       &rating,
				Status:       &status,
				Value:        &value,
				Tier:         &tierValue,
			})
		}
	}

	for _, party := range parties {
		if _, ok := matched[party.CounterParty]; ok {
			continue
		}
		tier := party.Tier
		facts = append(facts, domain.InvoiceFact{
			CounterParty: party.CounterParty,
			Tier:         &tier,
		})
	}

	return facts
}
