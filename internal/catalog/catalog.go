// Package catalog holds the static billing configuration: plan
// definitions, credit packs, and per-action credit costs. A Catalog is
// built once at startup and treated as immutable afterwards.
package catalog

import (
	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
)

type Catalog struct {
	plans     map[model.Tier]*model.PlanDefinition
	packs     map[string]*model.CreditPack
	costs     map[model.ActionKind]int64
	planOrder []model.Tier
	packOrder []string
	drawOrder model.DrawOrder
}

// Options override the compiled-in defaults, typically from the yaml
// config. Zero-value fields keep the defaults.
type Options struct {
	Plans     []model.PlanDefinition
	Packs     []model.CreditPack
	Costs     map[model.ActionKind]int64
	DrawOrder model.DrawOrder
}

// New builds the catalog. Seeded tiers are fixed: every catalog exposes
// exactly free, pro, and enterprise.
func New(opts Options) (*Catalog, error) {
	c := &Catalog{
		plans:     make(map[model.Tier]*model.PlanDefinition),
		packs:     make(map[string]*model.CreditPack),
		costs:     make(map[model.ActionKind]int64),
		drawOrder: model.DrawMonthlyFirst,
	}
	for _, p := range defaultPlans() {
		p := p
		c.plans[p.ID] = &p
		c.planOrder = append(c.planOrder, p.ID)
	}
	for _, p := range opts.Plans {
		p := p
		if !p.ID.Valid() {
			return nil, domain.ErrUnknownTier
		}
		c.plans[p.ID] = &p
	}
	packs := opts.Packs
	if len(packs) == 0 {
		packs = defaultPacks()
	}
	for _, pk := range packs {
		pk := pk
		if pk.ID == "" || pk.Credits <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		c.packs[pk.ID] = &pk
		c.packOrder = append(c.packOrder, pk.ID)
	}
	for k, v := range defaultCosts() {
		c.costs[k] = v
	}
	for k, v := range opts.Costs {
		if v <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		c.costs[k] = v
	}
	if opts.DrawOrder != "" {
		if opts.DrawOrder != model.DrawMonthlyFirst && opts.DrawOrder != model.DrawPurchasedFirst {
			return nil, domain.ErrInvalidArgument
		}
		c.drawOrder = opts.DrawOrder
	}
	return c, nil
}

// Plan looks up a tier definition. Unknown tiers are a programmer or
// config error, never user input taken at face value.
func (c *Catalog) Plan(tier model.Tier) (*model.PlanDefinition, error) {
	p, ok := c.plans[tier]
	if !ok {
		return nil, domain.ErrUnknownTier
	}
	return p, nil
}

func (c *Catalog) Plans() []*model.PlanDefinition {
	out := make([]*model.PlanDefinition, 0, len(c.planOrder))
	for _, id := range c.planOrder {
		out = append(out, c.plans[id])
	}
	return out
}

func (c *Catalog) Pack(id string) (*model.CreditPack, error) {
	p, ok := c.packs[id]
	if !ok {
		return nil, domain.ErrUnknownCreditPack
	}
	return p, nil
}

func (c *Catalog) Packs() []*model.CreditPack {
	out := make([]*model.CreditPack, 0, len(c.packOrder))
	for _, id := range c.packOrder {
		out = append(out, c.packs[id])
	}
	return out
}

// Cost returns the credit price of a metered action.
func (c *Catalog) Cost(kind model.ActionKind) (int64, error) {
	v, ok := c.costs[kind]
	if !ok {
		return 0, domain.ErrUnknownAction
	}
	return v, nil
}

func (c *Catalog) DrawOrder() model.DrawOrder { return c.drawOrder }

func defaultPlans() []model.PlanDefinition {
	return []model.PlanDefinition{
		{
			ID:                    model.TierFree,
			Name:                  "Free",
			MonthlyCredits:        model.LimitedCredits(100),
			DailyApplicationLimit: model.LimitedCredits(10),
			MaxSavedJobs:          model.LimitedCredits(50),
			Features:              []string{"AI chat", "Job search", "Resume builder"},
		},
		{
			ID:                    model.TierPro,
			Name:                  "Pro",
			MonthlyCredits:        model.UnlimitedCredits(),
			DailyApplicationLimit: model.UnlimitedCredits(),
			MaxSavedJobs:          model.UnlimitedCredits(),
			PriceMonthlyCents:     1900,
			PriceYearlyCents:      19000,
			Features:              []string{"Everything in Free", "Unlimited AI credits", "Priority matching"},
		},
		{
			ID:                    model.TierEnterprise,
			Name:                  "Enterprise",
			MonthlyCredits:        model.UnlimitedCredits(),
			DailyApplicationLimit: model.UnlimitedCredits(),
			MaxSavedJobs:          model.UnlimitedCredits(),
			PriceMonthlyCents:     9900,
			PriceYearlyCents:      99000,
			Features:              []string{"Everything in Pro", "Recruiting dashboard", "Team seats"},
		},
	}
}

func defaultPacks() []model.CreditPack {
	return []model.CreditPack{
		{ID: "pack_small", Name: "Starter pack", Credits: 100, PriceCents: 500},
		{ID: "pack_medium", Name: "Growth pack", Credits: 500, PriceCents: 2000},
		{ID: "pack_large", Name: "Power pack", Credits: 2000, PriceCents: 6000},
	}
}

func defaultCosts() map[model.ActionKind]int64 {
	return map[model.ActionKind]int64{
		model.ActionResumeGeneration: 10,
		model.ActionCoverLetter:      5,
		model.ActionChatMessage:      1,
		model.ActionJobMatch:         2,
	}
}
