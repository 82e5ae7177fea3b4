// Package metrics handles Redis operations for storing and retrieving
// activity tracking statistics.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// DailyStatsKeyPrefix forms the base key for daily statistics in Redis.
	DailyStatsKeyPrefix = "daily_statistics"

	// HourlyStatsKeyPrefix forms the base key for hourly statistics in Redis.
	HourlyStatsKeyPrefix = "hourly_statistics"

	// FieldMessagesTracked counts tracked chat messages.
	FieldMessagesTracked = "messages_tracked"
	// FieldVoiceUpdates counts voice join and leave events.
	FieldVoiceUpdates = "voice_updates"
	// FieldBoardRefreshes counts rendered leaderboard refreshes.
	FieldBoardRefreshes = "board_refreshes"
	// FieldCacheHits counts leaderboard cache hits.
	FieldCacheHits = "cache_hits"
	// FieldCacheMisses counts leaderboard cache misses.
	FieldCacheMisses = "cache_misses"
	// FieldEventsDropped counts rate-limited or dropped events.
	FieldEventsDropped = "events_dropped"
)

// HourlyStat represents a single hour's statistics.
// The Hour field is used to order stats chronologically.
type HourlyStat struct {
	Hour     int `json:"hour"`
	Messages int `json:"messages"`
	Voice    int `json:"voice"`
	Dropped  int `json:"dropped"`
}

// HourlyStats represents a collection of hourly statistics.
type HourlyStats []HourlyStat

// Summary aggregates the counters of a single day.
type Summary struct {
	Date            string `json:"date"`
	MessagesTracked int64  `json:"messagesTracked"`
	VoiceUpdates    int64  `json:"voiceUpdates"`
	BoardRefreshes  int64  `json:"boardRefreshes"`
	CacheHits       int64  `json:"cacheHits"`
	CacheMisses     int64  `json:"cacheMisses"`
	EventsDropped   int64  `json:"eventsDropped"`
}

// Client handles Redis operations for storing and retrieving statistics.
type Client struct {
	Client rueidis.Client
	logger *zap.Logger
}

// NewClient creates a Client with the provided Redis connection and logger.
func NewClient(client rueidis.Client, logger *zap.Logger) *Client {
	return &Client{
		Client: client,
		logger: logger.Named("metrics"),
	}
}

// IncrementDailyStat atomically increases a daily statistic counter.
// The field parameter determines which counter to increment.
func (c *Client) IncrementDailyStat(ctx context.Context, field string, count int) error {
	// Build key for today's statistics
	date := time.Now().UTC().Format("2006-01-02")
	key := fmt.Sprintf("%s:%s", DailyStatsKeyPrefix, date)

	// Increment field using HINCRBY
	cmd := c.Client.B().Hincrby().Key(key).Field(field).Increment(int64(count)).Build()
	if err := c.Client.Do(ctx, cmd).Error(); err != nil {
		c.logger.Error("Failed to increment daily stat",
			zap.Error(err),
			zap.String("field", field),
			zap.Int("count", count))

		return err
	}

	return nil
}

// IncrementHourlyStat atomically increases an hourly statistic counter.
// The field parameter determines which counter to increment.
func (c *Client) IncrementHourlyStat(ctx context.Context, field string, count int) error {
	// Build key for current hour's statistics
	hour := time.Now().UTC().Format("2006-01-02:15")
	key := fmt.Sprintf("%s:%s", HourlyStatsKeyPrefix, hour)

	// Increment field using HINCRBY
	cmd := c.Client.B().Hincrby().Key(key).Field(field).Increment(int64(count)).Build()
	if err := c.Client.Do(ctx, cmd).Error(); err != nil {
		c.logger.Error("Failed to increment hourly stat",
			zap.Error(err),
			zap.String("field", field),
			zap.Int("count", count))

		return err
	}

	return nil
}

// Record increments both the daily and hourly counters for a field.
// Failures are logged inside the increment calls and otherwise ignored so
// tracking never blocks on metrics.
func (c *Client) Record(ctx context.Context, field string, count int) {
	_ = c.IncrementDailyStat(ctx, field, count)
	_ = c.IncrementHourlyStat(ctx, field, count)
}

// GetHourlyStats retrieves statistics for the last 24 hours.
// It combines data from multiple Redis keys into a chronological list.
func (c *Client) GetHourlyStats(ctx context.Context) (HourlyStats, error) {
	stats := make(HourlyStats, 24)
	now := time.Now().UTC()

	// Collect stats for each of the last 24 hours
	for i := range stats {
		hour := now.Add(time.Duration(-i) * time.Hour)
		key := fmt.Sprintf("%s:%s", HourlyStatsKeyPrefix, hour.Format("2006-01-02:15"))

		// Get all fields for this hour using HGETALL
		cmd := c.Client.B().Hgetall().Key(key).Build()
		result, err := c.Client.Do(ctx, cmd).AsIntMap()
		if err != nil {
			c.logger.Error("Failed to get hourly stats",
				zap.Error(err),
				zap.String("key", key))

			return nil, err
		}

		// Store stats in chronological order
		stats[23-i] = HourlyStat{
			Hour:     hour.Hour(),
			Messages: int(result[FieldMessagesTracked]),
			Voice:    int(result[FieldVoiceUpdates]),
			Dropped:  int(result[FieldEventsDropped]),
		}
	}

	return stats, nil
}

// GetDailySummary retrieves today's counter totals.
func (c *Client) GetDailySummary(ctx context.Context) (*Summary, error) {
	date := time.Now().UTC().Format("2006-01-02")
	key := fmt.Sprintf("%s:%s", DailyStatsKeyPrefix, date)

	cmd := c.Client.B().Hgetall().Key(key).Build()
	result, err := c.Client.Do(ctx, cmd).AsIntMap()
	if err != nil {
		c.logger.Error("Failed to get daily summary",
			zap.Error(err),
			zap.String("key", key))

		return nil, err
	}

	return &Summary{
		Date:            date,
		MessagesTracked: result[FieldMessagesTracked],
		VoiceUpdates:    result[FieldVoiceUpdates],
		BoardRefreshes:  result[FieldBoardRefreshes],
		CacheHits:       result[FieldCacheHits],
		CacheMisses:     result[FieldCacheMisses],
		EventsDropped:   result[FieldEventsDropped],
	}, nil
}
