package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter provides proactive rate limiting for LLM providers using
// Redis. Counters are global across processes, so parallel scan workers
// share one budget.
type RateLimiter struct {
	redis    *redis.Client
	provider string
	rpmLimit int64 // requests per minute
	tpmLimit int64 // tokens per minute
	rpdLimit int64 // requests per day
}

const (
	DefaultRPM = 1000
	DefaultTPM = 1_000_000
	DefaultRPD = 10_000
)

// NewRateLimiter connects to Redis and verifies the connection.
func NewRateLimiter(redisAddr, password, provider string) (*RateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", redisAddr, err)
	}

	return &RateLimiter{
		redis:    client,
		provider: provider,
		rpmLimit: DefaultRPM,
		tpmLimit: DefaultTPM,
		rpdLimit: DefaultRPD,
	}, nil
}

// checkScript atomically increments the per-minute and per-day counters
// and reports whether any threshold is crossed. 90% thresholds throttle
// proactively; the daily quota is hard.
var checkScript = redis.NewScript(`
	local rpm_key = KEYS[1]
	local tpm_key = KEYS[2]
	local rpd_key = KEYS[3]
	local rpm_limit = tonumber(ARGV[1])
	local tpm_limit = tonumber(ARGV[2])
	local rpd_limit = tonumber(ARGV[3])
	local tokens = tonumber(ARGV[4])

	local rpm = redis.call('INCR', rpm_key)
	local tpm = redis.call('INCRBY', tpm_key, tokens)
	local rpd = redis.call('INCR', rpd_key)

	if rpm == 1 then redis.call('EXPIRE', rpm_key, 70) end
	if tpm == tokens then redis.call('EXPIRE', tpm_key, 70) end
	if rpd == 1 then redis.call('EXPIRE', rpd_key, 86400) end

	if rpm >= rpm_limit * 0.9 then
		return {-1, 'RPM', rpm, rpm_limit}
	end
	if tpm >= tpm_limit * 0.9 then
		return {-2, 'TPM', tpm, tpm_limit}
	end
	if rpd >= rpd_limit then
		return {-3, 'RPD', rpd, rpd_limit}
	end

	return {0, 'OK', rpm, tpm, rpd}
`)

// CheckAndIncrement increments usage counters and returns an error when a
// limit is near or exceeded.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, estimatedTokens int64) error {
	now := time.Now()
	minuteKey := fmt.Sprintf("%s:rpm:%s", r.provider, now.Format("2006-01-02T15:04"))
	tpmKey := fmt.Sprintf("%s:tpm:%s", r.provider, now.Format("2006-01-02T15:04"))
	dayKey := fmt.Sprintf("%s:rpd:%s", r.provider, now.Format("2006-01-02"))

	result, err := checkScript.Run(ctx, r.redis,
		[]string{minuteKey, tpmKey, dayKey},
		r.rpmLimit, r.tpmLimit, r.rpdLimit, estimatedTokens).Result()
	if err != nil {
		return fmt.Errorf("rate limiter Redis operation failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 2 {
		return fmt.Errorf("invalid rate limiter response format")
	}

	code := resultSlice[0].(int64)
	if code >= 0 {
		return nil
	}

	limitType := resultSlice[1].(string)
	current := resultSlice[2].(int64)
	limit := resultSlice[3].(int64)

	if code == -3 {
		tomorrow := now.Add(24 * time.Hour)
		midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
		waitTime := int(midnight.Sub(now).Seconds())
		return fmt.Errorf("daily quota exceeded: %d/%d requests (resets in %ds)", current, limit, waitTime)
	}

	waitTime := 60 - now.Second()
	if waitTime <= 0 {
		waitTime = 1
	}
	return fmt.Errorf("approaching %s limit (%d/%d), wait %ds", limitType, current, limit, waitTime)
}

// CheckAndIncrementWithRetry blocks until the window resets, respecting
// context cancellation. Daily-quota errors are fatal and returned as-is.
func (r *RateLimiter) CheckAndIncrementWithRetry(ctx context.Context, estimatedTokens int64) error {
	for {
		err := r.CheckAndIncrement(ctx, estimatedTokens)
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "daily quota exceeded") {
			return err
		}
		if strings.Contains(err.Error(), "wait") {
			waitTime := extractWaitTime(err.Error())
			select {
			case <-time.After(time.Duration(waitTime) * time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return err
	}
}

var waitPattern = regexp.MustCompile(`wait (\d+)s`)

func extractWaitTime(errMsg string) int {
	matches := waitPattern.FindStringSubmatch(errMsg)
	if len(matches) > 1 {
		if waitTime, err := strconv.Atoi(matches[1]); err == nil {
			return waitTime
		}
	}
	return 5
}

// GetCurrentUsage returns the live counter values for observability.
func (r *RateLimiter) GetCurrentUsage(ctx context.Context) (rpm, tpm, rpd int64, err error) {
	now := time.Now()
	minuteKey := fmt.Sprintf("%s:rpm:%s", r.provider, now.Format("2006-01-02T15:04"))
	tpmKey := fmt.Sprintf("%s:tpm:%s", r.provider, now.Format("2006-01-02T15:04"))
	dayKey := fmt.Sprintf("%s:rpd:%s", r.provider, now.Format("2006-01-02"))

	for key, dst := range map[string]*int64{minuteKey: &rpm, tpmKey: &tpm, dayKey: &rpd} {
		val, getErr := r.redis.Get(ctx, key).Int64()
		if getErr != nil && getErr != redis.Nil {
			return 0, 0, 0, getErr
		}
		*dst = val
	}
	return rpm, tpm, rpd, nil
}

// EstimateTokens approximates token count at four characters per token.
func EstimateTokens(text string) int64 {
	return int64(len(text)/4 + 1)
}

// Close releases the Redis connection.
func (r *RateLimiter) Close() error {
	return r.redis.Close()
}
