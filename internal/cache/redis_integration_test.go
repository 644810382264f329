//go:build integration

package cache

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type CentersSuite struct {
	suite.Suite
	cache *Centers
}

func TestCentersSuite(t *testing.T) {
	if os.Getenv("APP_REDIS_URL") == "" {
		t.Skip("APP_REDIS_URL is not set")
	}
	suite.Run(t, new(CentersSuite))
}

func (s *CentersSuite) SetupSuite() {
	client, err := Connect(context.Background(), os.Getenv("APP_REDIS_URL"))
	s.Require().NoError(err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s.cache = NewCenters(client, time.Minute, logger)
}

func (s *CentersSuite) SetupTest() {
	s.cache.Invalidate(context.Background())
}

func (s *CentersSuite) TestRoundTripAndInvalidate() {
	ctx := context.Background()

	_, ok := s.cache.Centers(ctx, "active=true:services=")
	s.False(ok)

	s.cache.SetCenters(ctx, "active=true:services=", []*types.DonationCenter{{ID: "c1", Name: "North", Services: []string{"plasma"}}})
	s.cache.SetCenters(ctx, "active=false:services=", []*types.DonationCenter{})

	got, ok := s.cache.Centers(ctx, "active=true:services=")
	s.Require().True(ok)
	s.Require().Len(got, 1)
	s.Equal("North", got[0].Name)
	s.Equal([]string{"plasma"}, got[0].Services)

	s.cache.Invalidate(ctx)

	_, ok = s.cache.Centers(ctx, "active=true:services=")
	s.False(ok)
	_, ok = s.cache.Centers(ctx, "active=false:services=")
	s.False(ok)
}
