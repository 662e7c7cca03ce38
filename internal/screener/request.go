package screener

import (
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/newthinker/stockscope/internal/core"
)

// AllBands selects every RSI value.
const AllBands = "all"

// Request is the wire form of a screening request.
type Request struct {
	Markets      []string `json:"markets,omitempty" validate:"dive,required"`
	PriceChange  *float64 `json:"priceChange,omitempty" validate:"omitempty,gte=0"`
	VolumeRatio  *float64 `json:"volumeRatio,omitempty" validate:"omitempty,gte=0"`
	RSIRange     string   `json:"rsiRange,omitempty"`
	MinMarketCap *float64 `json:"minMarketCap,omitempty" validate:"omitempty,gte=0"`
	Limit        int      `json:"limit,omitempty" validate:"gte=0"`
}

var validate = validator.New()

// ParseCriteria validates r and normalizes it. defaultLimit applies when r.Limit is zero.
func ParseCriteria(r Request, defaultLimit int) (core.ScreenCriteria, error) {
	if err := validate.Struct(r); err != nil {
		return core.ScreenCriteria{}, core.WrapError(core.ErrInvalidInput, err)
	}

	var c core.ScreenCriteria
	for _, name := range r.Markets {
		if strings.EqualFold(name, "all") {
			c.Markets = nil
			break
		}
		m, ok := core.ParseMarket(name)
		if !ok {
			return core.ScreenCriteria{}, core.Errorf(core.ErrInvalidInput, "unknown market %q", name)
		}
		if !slices.Contains(c.Markets, m) {
			c.Markets = append(c.Markets, m)
		}
	}

	band, err := ParseRSIBand(r.RSIRange)
	if err != nil {
		return core.ScreenCriteria{}, err
	}
	c.RSIBand = band
	c.PriceChange = fromPointer(r.PriceChange)
	c.VolumeRatio = fromPointer(r.VolumeRatio)
	c.MinMarketCap = fromPointer(r.MinMarketCap)

	c.Limit = r.Limit
	if c.Limit == 0 {
		c.Limit = defaultLimit
	}
	return c, nil
}

// ParseRSIBand parses "min-max". Empty and "all" select every value.
func ParseRSIBand(s string) (optional.Option[core.RSIBand], error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, AllBands) {
		return optional.None[core.RSIBand](), nil
	}

	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return optional.None[core.RSIBand](), core.Errorf(core.ErrInvalidInput, "rsi range %q: want min-max", s)
	}
	minV, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	maxV, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err1 != nil || err2 != nil {
		return optional.None[core.RSIBand](), core.Errorf(core.ErrInvalidInput, "rsi range %q: bounds must be numbers", s)
	}
	if minV < 0 || maxV > 100 || minV > maxV {
		return optional.None[core.RSIBand](), core.Errorf(core.ErrInvalidInput, "rsi range %q: want 0 <= min <= max <= 100", s)
	}
	return optional.Some(core.RSIBand{Min: minV, Max: maxV}), nil
}

// RequestFrom renders criteria back into wire form.
func RequestFrom(c core.ScreenCriteria) Request {
	r := Request{
		PriceChange:  toPointer(c.PriceChange),
		VolumeRatio:  toPointer(c.VolumeRatio),
		MinMarketCap: toPointer(c.MinMarketCap),
		Limit:        c.Limit,
		RSIRange:     AllBands,
	}
	for _, m := range c.Markets {
		r.Markets = append(r.Markets, string(m))
	}
	if c.RSIBand.IsSome() {
		r.RSIRange = c.RSIBand.Unwrap().String()
	}
	return r
}

func fromPointer(p *float64) optional.Option[float64] {
	if p == nil {
		return optional.None[float64]()
	}
	return optional.Some(*p)
}

func toPointer(o optional.Option[float64]) *float64 {
	if o.IsNone() {
		return nil
	}
	v := o.Unwrap()
	return &v
}
