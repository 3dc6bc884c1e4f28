package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"github.com/voltlab/volt-backtest/internal/logger"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

type DuckDBLoaderTestSuite struct {
	suite.Suite
	loader *DuckDBLoader
}

func TestDuckDBLoaderSuite(t *testing.T) {
	suite.Run(t, new(DuckDBLoaderTestSuite))
}

func (suite *DuckDBLoaderTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	suite.loader, err = NewDuckDBLoader(log)
	suite.Require().NoError(err)
}

func (suite *DuckDBLoaderTestSuite) TearDownTest() {
	suite.NoError(suite.loader.Close())
}

func (suite *DuckDBLoaderTestSuite) writeCSV(content string) string {
	path := filepath.Join(suite.T().TempDir(), "bars.csv")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0644))

	return path
}

func (suite *DuckDBLoaderTestSuite) TestLoadCSVWithFeatureColumns() {
	path := suite.writeCSV(`time,symbol,open,high,low,close,volume,vix,forecast
2023-03-01 00:00:00,SPY,399,402,398,400,1000,28.5,0.2
2023-03-02 00:00:00,SPY,400,403,399,401,1100,31.0,0.7
`)

	bars, err := suite.loader.Load(path, optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)

	suite.Equal("SPY", bars[0].Symbol)
	suite.Equal(400.0, bars[0].Close)
	suite.Equal(1000.0, bars[0].Volume)

	vix, ok := bars[0].Feature("vix")
	suite.True(ok)
	suite.Equal(28.5, vix)

	forecast, ok := bars[1].Feature("forecast")
	suite.True(ok)
	suite.Equal(0.7, forecast)

	// Loaded bars must be directly consumable by feed.New.
	f, err := New(bars)
	suite.Require().NoError(err)
	suite.Equal(2, f.Len())
}

func (suite *DuckDBLoaderTestSuite) TestLoadRespectsTimeRange() {
	path := suite.writeCSV(`time,symbol,open,high,low,close,volume
2023-03-01 00:00:00,SPY,399,402,398,400,1000
2023-03-02 00:00:00,SPY,400,403,399,401,1100
2023-03-03 00:00:00,SPY,401,404,400,402,1200
`)

	start := time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC)

	bars, err := suite.loader.Load(path, optional.Some(start), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Len(bars, 2)
}

func (suite *DuckDBLoaderTestSuite) TestLoadRejectsUnknownExtension() {
	_, err := suite.loader.Load("bars.json", optional.None[time.Time](), optional.None[time.Time]())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeFeedLoadFailed))
}
