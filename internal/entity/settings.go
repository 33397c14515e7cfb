package entity

import (
	"slices"

	"github.com/guregu/null/v6"
)

type Settings struct {
	MinProfitPercent    float64        `json:"minProfitPercent"`
	EnabledExchanges    []ExchangeName `json:"enabledExchanges"`
	EnabledPairs        []string       `json:"enabledPairs"`
	TradeAmount         float64        `json:"tradeAmount"`
	NotifyOnOpportunity bool           `json:"notifyOnOpportunity"`
}

func (s Settings) Clone() Settings {
	s.EnabledExchanges = slices.Clone(s.EnabledExchanges)
	s.EnabledPairs = slices.Clone(s.EnabledPairs)
	return s
}

// SettingsPatch is a partial update; absent fields keep their current value.
type SettingsPatch struct {
	MinProfitPercent    null.Float     `json:"minProfitPercent"`
	EnabledExchanges    []ExchangeName `json:"enabledExchanges"`
	EnabledPairs        []string       `json:"enabledPairs"`
	TradeAmount         null.Float     `json:"tradeAmount"`
	NotifyOnOpportunity null.Bool      `json:"notifyOnOpportunity"`
}

func (p SettingsPatch) Apply(s Settings) Settings {
	next := s.Clone()
	if p.MinProfitPercent.Valid {
		next.MinProfitPercent = p.MinProfitPercent.Float64
	}
	if p.EnabledExchanges != nil {
		next.EnabledExchanges = slices.Clone(p.EnabledExchanges)
	}
	if p.EnabledPairs != nil {
		next.EnabledPairs = slices.Clone(p.EnabledPairs)
	}
	if p.TradeAmount.Valid {
		next.TradeAmount = p.TradeAmount.Float64
	}
	if p.NotifyOnOpportunity.Valid {
		next.NotifyOnOpportunity = p.NotifyOnOpportunity.Bool
	}
	return next
}
