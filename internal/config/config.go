package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Log         Log                 `yaml:"log"`
	MetricsAddr string              `yaml:"metrics_addr"`
	Report      string              `yaml:"report"`
	Pipeline    Pipeline            `yaml:"pipeline"`
	Indicators  Indicators          `yaml:"indicators"`
	Strategies  []StrategyReference `yaml:"strategies" validate:"required,min=1"`
	Markets     map[string]Market   `yaml:"markets" validate:"required,min=1,dive"`
}

func Read(r io.Reader) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("unable to set config defaults: %w", err)
	}

	d := yaml.NewDecoder(r)
	err := d.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	for name, m := range cfg.Markets {
		if err := defaults.Set(&m); err != nil {
			return nil, fmt.Errorf("unable to set defaults for market %s: %w", name, err)
		}
		cfg.Markets[name] = m
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Validate checks field constraints and the rules that span several sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Indicators.MACD.Fast >= c.Indicators.MACD.Slow {
		return fmt.Errorf("macd fast period (%d) must be less than slow period (%d)", c.Indicators.MACD.Fast, c.Indicators.MACD.Slow)
	}

	names := make(map[string]struct{}, len(c.Strategies))
	for _, ref := range c.Strategies {
		if ref.Strategy == nil {
			return errors.New("empty strategy definition")
		}
		if err := validate.Struct(ref.Strategy); err != nil {
			return fmt.Errorf("strategy %s: %w", ref.Name(), err)
		}

		name := ref.Name()
		if _, ok := names[name]; ok {
			return fmt.Errorf("duplicate strategy name: %s", name)
		}
		names[name] = struct{}{}

		switch s := ref.Strategy.(type) {
		case StochRSITrend:
			if s.Oversold >= s.Overbought {
				return fmt.Errorf("strategy %s: oversold (%v) must be less than overbought (%v)", name, s.Oversold, s.Overbought)
			}
			if !slices.Contains(c.Indicators.EMA, s.TrendEMA) {
				return fmt.Errorf("strategy %s: trend ema %d is not a configured ema period", name, s.TrendEMA)
			}
		case StochRSICross:
			if s.Lower >= s.Upper {
				return fmt.Errorf("strategy %s: lower (%v) must be less than upper (%v)", name, s.Lower, s.Upper)
			}
		case EMATrend:
			if !slices.Contains(c.Indicators.EMA, s.EMA) {
				return fmt.Errorf("strategy %s: ema %d is not a configured ema period", name, s.EMA)
			}
		}
	}

	for name, m := range c.Markets {
		if m.SourceRef.Source == nil {
			return fmt.Errorf("market %s: source is required", name)
		}
		if err := validate.Struct(m.SourceRef.Source); err != nil {
			return fmt.Errorf("market %s: %w", name, err)
		}
		if m.Chart.Strategy != "" {
			if _, ok := names[m.Chart.Strategy]; !ok {
				return fmt.Errorf("market %s: chart strategy %s is not configured", name, m.Chart.Strategy)
			}
		}
	}

	return nil
}

type Log struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

type Pipeline struct {
	ChunkSize int `yaml:"chunk_size" default:"100000" validate:"gt=0"`
	Overlap   int `yaml:"overlap" default:"200" validate:"gte=0"`
}

type Market struct {
	SourceRef SourceReference `yaml:"source"`
	Store     string          `yaml:"store" validate:"required"`
	Resample  *Resample       `yaml:"resample" validate:"omitempty"`
	Dump      string          `yaml:"dump"`
	Chart     Chart           `yaml:"chart"`
	Resume    bool            `yaml:"resume"`
}

type Resample struct {
	Bar      time.Duration `yaml:"bar" validate:"gt=0"`
	Interval time.Duration `yaml:"interval" validate:"gt=0,gtfield=Bar"`
}

type Chart struct {
	Path     string `yaml:"path"`
	Strategy string `yaml:"strategy"`
	MaxBars  int    `yaml:"max_bars" default:"500" validate:"gt=0"`
	Width    int    `yaml:"width" default:"1600" validate:"gt=0"`
	Height   int    `yaml:"height" default:"400" validate:"gt=0"`
}

// indicator configs

type Indicators struct {
	EMA       []int         `yaml:"ema" default:"[9,21,50,100,200]" validate:"required,dive,gt=0"`
	Bollinger Bollinger     `yaml:"bollinger"`
	StochRSI  StochasticRSI `yaml:"stochastic_rsi"`
	MACD      MACD          `yaml:"macd"`
}

type Bollinger struct {
	Period int     `yaml:"period" default:"20" validate:"gte=2"`
	StdDev float64 `yaml:"std_dev" default:"2" validate:"gt=0"`
}

type StochasticRSI struct {
	RSIPeriod        int `yaml:"rsi_period" default:"14" validate:"gte=2"`
	StochasticPeriod int `yaml:"stochastic_period" default:"14" validate:"gte=1"`
	KPeriod          int `yaml:"k_period" default:"3" validate:"gte=1"`
	DPeriod          int `yaml:"d_period" default:"3" validate:"gte=1"`
}

type MAType string

const (
	MASimple      MAType = "sma"
	MAExponential MAType = "ema"
)

type MACD struct {
	Fast         int    `yaml:"fast" default:"12" validate:"gte=1"`
	Slow         int    `yaml:"slow" default:"26" validate:"gte=2"`
	Signal       int    `yaml:"signal" default:"9" validate:"gte=1"`
	OscillatorMA MAType `yaml:"oscillator_ma" default:"sma" validate:"oneof=sma ema"`
	SignalMA     MAType `yaml:"signal_ma" default:"sma" validate:"oneof=sma ema"`
}

// strategy configs

type StochRSITrend struct {
	Name       string  `yaml:"name"`
	Oversold   float64 `yaml:"oversold" default:"20" validate:"gte=0,lte=100"`
	Overbought float64 `yaml:"overbought" default:"80" validate:"gte=0,lte=100"`
	TrendEMA   int     `yaml:"trend_ema" default:"200" validate:"gt=0"`
}

type StochRSICross struct {
	Name  string  `yaml:"name"`
	Lower float64 `yaml:"lower" default:"20" validate:"gte=0,lte=100"`
	Upper float64 `yaml:"upper" default:"80" validate:"gte=0,lte=100"`
}

type EMATrend struct {
	Name string `yaml:"name"`
	EMA  int    `yaml:"ema" default:"100" validate:"gt=0"`
}

type BollingerBounce struct {
	Name string `yaml:"name"`
}

type BollingerBreakout struct {
	Name string `yaml:"name"`
}

type BollingerSqueeze struct {
	Name      string  `yaml:"name"`
	Threshold float64 `yaml:"threshold" default:"4" validate:"gt=0"`
}

type MeanReversion struct {
	Name      string  `yaml:"name"`
	Tolerance float64 `yaml:"tolerance" default:"0.1" validate:"gte=0,lte=1"`
}

type Strategy interface{}

type StrategyReference struct {
	Strategy Strategy `validate:"-"`
}

const (
	KindStochRSITrend     = "stoch_rsi_trend"
	KindStochRSICross     = "stoch_rsi_cross"
	KindEMATrend          = "ema_trend"
	KindBollingerBounce   = "bb_bounce"
	KindBollingerBreakout = "bb_breakout"
	KindBollingerSqueeze  = "bb_squeeze"
	KindMeanReversion     = "mean_reversion"
)

// Name is the configured strategy name, or its kind when no name was given.
func (w StrategyReference) Name() string {
	name, kind := "", ""
	switch s := w.Strategy.(type) {
	case StochRSITrend:
		name, kind = s.Name, KindStochRSITrend
	case StochRSICross:
		name, kind = s.Name, KindStochRSICross
	case EMATrend:
		name, kind = s.Name, KindEMATrend
	case BollingerBounce:
		name, kind = s.Name, KindBollingerBounce
	case BollingerBreakout:
		name, kind = s.Name, KindBollingerBreakout
	case BollingerSqueeze:
		name, kind = s.Name, KindBollingerSqueeze
	case MeanReversion:
		name, kind = s.Name, KindMeanReversion
	}

	if name != "" {
		return name
	}
	return kind
}

func (w *StrategyReference) UnmarshalYAML(value *yaml.Node) error {
	if len(value.Content) == 0 {
		return nil
	}

	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return errors.New("invalid strategy yaml format")
	}

	key := value.Content[0].Value
	var err error
	switch key {
	case KindStochRSITrend:
		w.Strategy, err = decodeWithDefaults[StochRSITrend](value.Content[1])
	case KindStochRSICross:
		w.Strategy, err = decodeWithDefaults[StochRSICross](value.Content[1])
	case KindEMATrend:
		w.Strategy, err = decodeWithDefaults[EMATrend](value.Content[1])
	case KindBollingerBounce:
		w.Strategy, err = decodeWithDefaults[BollingerBounce](value.Content[1])
	case KindBollingerBreakout:
		w.Strategy, err = decodeWithDefaults[BollingerBreakout](value.Content[1])
	case KindBollingerSqueeze:
		w.Strategy, err = decodeWithDefaults[BollingerSqueeze](value.Content[1])
	case KindMeanReversion:
		w.Strategy, err = decodeWithDefaults[MeanReversion](value.Content[1])
	default:
		return fmt.Errorf("unknown strategy type: %s", key)
	}

	if err != nil {
		return fmt.Errorf("failed parsing %s strategy config: %w", key, err)
	}

	return nil
}

// source configs

type CSV struct {
	Path string `yaml:"path" validate:"required"`
}

type Alpaca struct {
	BaseUrl   string        `yaml:"base_url"`
	ApiKey    string        `yaml:"api_key" validate:"required"`
	Secret    string        `yaml:"secret" validate:"required"`
	Symbol    string        `yaml:"symbol" validate:"required"`
	TimeFrame time.Duration `yaml:"timeframe" default:"1m" validate:"gt=0"`
	Start     time.Time     `yaml:"start" validate:"required"`
	End       time.Time     `yaml:"end"`
}

type Source interface{}

type SourceReference struct {
	Source Source `validate:"-"`
}

func (w *SourceReference) UnmarshalYAML(value *yaml.Node) error {
	if len(value.Content) == 0 {
		return nil
	}

	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return errors.New("invalid source yaml format")
	}

	key := value.Content[0].Value
	var err error
	switch key {
	case "csv":
		w.Source, err = decodeWithDefaults[CSV](value.Content[1])
	case "alpaca":
		w.Source, err = decodeWithDefaults[Alpaca](value.Content[1])
	default:
		return fmt.Errorf("unknown source type: %s", key)
	}

	if err != nil {
		return fmt.Errorf("failed parsing %s source config: %w", key, err)
	}

	return nil
}

func decodeWithDefaults[T any](node *yaml.Node) (T, error) {
	var v T
	if err := defaults.Set(&v); err != nil {
		return v, err
	}
	if err := node.Decode(&v); err != nil {
		return v, err
	}

	return v, nil
}
