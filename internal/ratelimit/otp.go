// Package ratelimit throttles OTP sends per phone number in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sendScript enforces, in order, an active block, the per-send cooldown
// and the per-window cap.  Exceeding the cap blocks the phone for
// three windows.  Returns {allowed, retry_after_ms}.
var sendScript = redis.NewScript(`
	local block_key = KEYS[1]
	local last_key = KEYS[2]
	local count_key = KEYS[3]
	local cooldown_ms = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local max_sends = tonumber(ARGV[3])

	local ttl = redis.call('PTTL', block_key)
	if ttl > 0 then
		return { 0, ttl }
	end
	ttl = redis.call('PTTL', last_key)
	if ttl > 0 then
		return { 0, ttl }
	end

	local n = redis.call('INCR', count_key)
	if n == 1 then
		redis.call('PEXPIRE', count_key, window_ms)
	end
	if n > max_sends then
		local block_ms = window_ms * 3
		redis.call('SET', block_key, '1', 'PX', block_ms)
		return { 0, block_ms }
	end

	if cooldown_ms > 0 then
		redis.call('SET', last_key, '1', 'PX', cooldown_ms)
	end
	return { 1, 0 }
`)

// OTPSendLimiter caps how often a code may be sent to one phone.  A nil
// limiter, or one built without a client, allows everything.
type OTPSendLimiter struct {
	rdb      redis.Scripter
	prefix   string
	cooldown time.Duration
	window   time.Duration
	max      int
}

// NewOTPSendLimiter returns a limiter backed by rdb.  rdb may be nil when
// Redis is not configured.
func NewOTPSendLimiter(rdb redis.Scripter, prefix string, cooldown, window time.Duration, max int) *OTPSendLimiter {
	if prefix == "" {
		prefix = "rc:otp"
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if max < 1 {
		max = 1
	}
	return &OTPSendLimiter{rdb: rdb, prefix: prefix, cooldown: cooldown, window: window, max: max}
}

// Allow records a send attempt for phone.  A positive retryAfter means the
// send must be refused for that long.  Redis errors are returned with a
// zero retryAfter so the caller can decide whether to fail open.
func (l *OTPSendLimiter) Allow(ctx context.Context, phone string) (time.Duration, error) {
	if l == nil || l.rdb == nil {
		return 0, nil
	}
	res, err := sendScript.Run(ctx, l.rdb, l.keys(phone),
		l.cooldown.Milliseconds(), l.window.Milliseconds(), l.max).Int64Slice()
	if err != nil {
		return 0, err
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("unexpected limiter result %v", res)
	}
	if res[0] == 1 {
		return 0, nil
	}
	retry := time.Duration(res[1]) * time.Millisecond
	if retry <= 0 {
		retry = time.Second
	}
	return retry, nil
}

// keys share a hash tag so the script stays on one cluster slot.
func (l *OTPSendLimiter) keys(phone string) []string {
	base := fmt.Sprintf("%s:{%s}", l.prefix, phone)
	return []string{base + ":block", base + ":last", base + ":count"}
}
