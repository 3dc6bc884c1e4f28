package commission

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

type CommissionTestSuite struct {
	suite.Suite
}

func TestCommissionSuite(t *testing.T) {
	suite.Run(t, new(CommissionTestSuite))
}

func (suite *CommissionTestSuite) TestZero() {
	model := NewZero()
	suite.NotNil(model)

	tests := []struct {
		name     string
		quantity float64
		price    float64
	}{
		{"zero quantity", 0, 100},
		{"small order", 10, 100},
		{"large order", 10000, 250},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(0.0, model.Calculate(tc.quantity, tc.price))
		})
	}
}

func (suite *CommissionTestSuite) TestPerShare() {
	model := NewPerShare(0.005, 1.0)

	tests := []struct {
		name     string
		quantity float64
		expected float64
	}{
		{"zero quantity pays minimum", 0, 1.0},
		{"small order pays minimum", 10, 1.0},   // 0.005 * 10 = 0.05 < 1.0
		{"at threshold", 200, 1.0},              // 0.005 * 200 = 1.0
		{"large order pays per share", 1000, 5.0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, model.Calculate(tc.quantity, 100))
		})
	}
}

func (suite *CommissionTestSuite) TestPercentNotional() {
	model := NewPercentNotional(0.001)
	suite.Equal(1.0, model.Calculate(10, 100))
	suite.Equal(0.0, model.Calculate(0, 100))
}

func (suite *CommissionTestSuite) TestFromConfig() {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"zero", Config{Model: ModelZero}, false},
		{"empty model defaults to zero", Config{}, false},
		{"per share", Config{Model: ModelPerShare, Rate: 0.005, Minimum: 1}, false},
		{"percent notional", Config{Model: ModelPercentNotional, Rate: 0.001}, false},
		{"negative per share rate", Config{Model: ModelPerShare, Rate: -1}, true},
		{"percent rate above one", Config{Model: ModelPercentNotional, Rate: 1.5}, true},
		{"unknown model", Config{Model: "flat_monthly"}, true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			model, err := FromConfig(tc.config)
			if tc.wantErr {
				suite.Error(err)
				suite.True(errors.IsConfiguration(err))
			} else {
				suite.NoError(err)
				suite.NotNil(model)
			}
		})
	}
}
