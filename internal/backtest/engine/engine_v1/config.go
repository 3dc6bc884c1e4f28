package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/voltlab/volt-backtest/internal/backtest/engine/engine_v1/commission"
	"github.com/voltlab/volt-backtest/internal/backtest/engine/engine_v1/slippage"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

type BacktestEngineV1Config struct {
	InitialCash         float64                    `yaml:"initial_cash" json:"initial_cash" jsonschema:"title=Initial Cash,description=Starting cash for the backtest in USD,minimum=0"`
	Commission          commission.Config          `yaml:"commission" json:"commission" jsonschema:"title=Commission,description=Commission model applied to fills"`
	Slippage            slippage.Config            `yaml:"slippage" json:"slippage" jsonschema:"title=Slippage,description=Slippage model applied to market order fills"`
	MaxPendingOrderBars int                        `yaml:"max_pending_order_bars" json:"max_pending_order_bars" jsonschema:"title=Max Pending Order Bars,description=Bars a limit order stays open before expiring; 0 means never,minimum=0"`
	AllowShort          bool                       `yaml:"allow_short" json:"allow_short" jsonschema:"title=Allow Short,description=Permit sells that open or extend a short position"`
	RiskFreeRate        float64                    `yaml:"risk_free_rate" json:"risk_free_rate" jsonschema:"title=Risk Free Rate,description=Annual risk free rate used for the Sharpe ratio"`
	AnnualizationFactor float64                    `yaml:"annualization_factor" json:"annualization_factor" jsonschema:"title=Annualization Factor,description=Periods per year for volatility and Sharpe scaling,minimum=0"`
	StartTime           optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the backtest period"`
	EndTime             optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the backtest period"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestEngineV1Config.
// Omitted fields keep the DefaultConfig values rather than Go zero values.
func (c *BacktestEngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		InitialCash         float64           `yaml:"initial_cash"`
		Commission          commission.Config `yaml:"commission"`
		Slippage            slippage.Config   `yaml:"slippage"`
		MaxPendingOrderBars int               `yaml:"max_pending_order_bars"`
		AllowShort          bool              `yaml:"allow_short"`
		RiskFreeRate        float64           `yaml:"risk_free_rate"`
		AnnualizationFactor float64           `yaml:"annualization_factor"`
		StartTime           *time.Time        `yaml:"start_time"`
		EndTime             *time.Time        `yaml:"end_time"`
	}

	defaults := DefaultConfig()
	config := Config{
		InitialCash:         defaults.InitialCash,
		Commission:          defaults.Commission,
		Slippage:            defaults.Slippage,
		MaxPendingOrderBars: defaults.MaxPendingOrderBars,
		AllowShort:          defaults.AllowShort,
		RiskFreeRate:        defaults.RiskFreeRate,
		AnnualizationFactor: defaults.AnnualizationFactor,
	}

	if err := unmarshal(&config); err != nil {
		return err
	}

	c.InitialCash = config.InitialCash
	c.Commission = config.Commission
	c.Slippage = config.Slippage
	c.MaxPendingOrderBars = config.MaxPendingOrderBars
	c.AllowShort = config.AllowShort
	c.RiskFreeRate = config.RiskFreeRate
	c.AnnualizationFactor = config.AnnualizationFactor
	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}
	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate checks the configuration before a run. All failures here are
// fatal configuration errors.
func (c *BacktestEngineV1Config) Validate() error {
	if c.InitialCash <= 0 {
		return errors.Newf(errors.ErrCodeInvalidInitialCash,
			"initial_cash must be positive, got %f", c.InitialCash)
	}
	if c.MaxPendingOrderBars < 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"max_pending_order_bars must be non-negative, got %d", c.MaxPendingOrderBars)
	}
	if c.AnnualizationFactor <= 0 {
		return errors.Newf(errors.ErrCodeInvalidAnnualization,
			"annualization_factor must be positive, got %f", c.AnnualizationFactor)
	}
	if start, err := c.StartTime.Take(); err == nil {
		if end, err := c.EndTime.Take(); err == nil && end.Before(start) {
			return errors.Newf(errors.ErrCodeInvalidConfiguration,
				"end_time %s is before start_time %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
		}
	}
	if _, err := commission.FromConfig(c.Commission); err != nil {
		return err
	}
	if _, err := slippage.FromConfig(c.Slippage); err != nil {
		return err
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}
			if strings.Contains(t.String(), "commission.ModelName") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission.AllModels,
				}
			}
			if strings.Contains(t.String(), "slippage.ModelName") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: slippage.AllModels,
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// DefaultConfig returns a config suitable for daily equity bars.
func DefaultConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCash:         100000,
		Commission:          commission.Config{Model: commission.ModelZero},
		Slippage:            slippage.Config{Model: slippage.ModelBasisPoints, Bps: 5},
		MaxPendingOrderBars: 0,
		AllowShort:          false,
		RiskFreeRate:        0,
		AnnualizationFactor: 252,
		StartTime:           optional.None[time.Time](),
		EndTime:             optional.None[time.Time](),
	}
}

// EmptyConfig returns a BacktestEngineV1Config with zero values
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCash:         0,
		Commission:          commission.Config{},
		Slippage:            slippage.Config{},
		AnnualizationFactor: 252,
		StartTime:           optional.None[time.Time](),
		EndTime:             optional.None[time.Time](),
	}
}
