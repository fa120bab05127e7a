package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MockMailboxTTL is how long captured mail stays in Redis.
const MockMailboxTTL = time.Hour

// MockMailboxKey is the Redis list holding captured mail for an address.
func MockMailboxKey(address string) string {
	return "mockemail:" + strings.ToLower(address)
}

// CapturedEmail is the JSON document RedisSender stores.
type CapturedEmail struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_at"`
}

// RedisSender implements the Sender interface by storing emails in Redis.
// It backs the mock mail mode used by end-to-end tests.
type RedisSender struct {
	client *redis.Client
	from   string
	logger *zap.Logger
}

func NewRedisSender(client *redis.Client, from string, logger *zap.Logger) Sender {
	return &RedisSender{
		client: client,
		from:   from,
		logger: logger.With(zap.String("component", "email.redis")),
	}
}

// Send pushes the message onto each recipient's mailbox list.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	data, err := json.Marshal(CapturedEmail{
		To:      strings.Join(to, ", "),
		From:    s.from,
		Subject: subject,
		Body:    string(rawMessage),
		SentAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, addr := range to {
		key := MockMailboxKey(addr)
		pipe.LPush(ctx, key, data)
		pipe.Expire(ctx, key, MockMailboxTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store email in redis: %w", err)
	}

	s.logger.Debug("mock email stored", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

// ReadMockMailbox returns captured mail for address, newest first.
func ReadMockMailbox(ctx context.Context, client *redis.Client, address string) ([]CapturedEmail, error) {
	items, err := client.LRange(ctx, MockMailboxKey(address), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read mailbox %s: %w", address, err)
	}
	out := make([]CapturedEmail, 0, len(items))
	for _, item := range items {
		var e CapturedEmail
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode captured email: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
