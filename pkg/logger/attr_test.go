package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/retailplan/pkg/logger"
)

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestSellerID(t *testing.T) {
	id := uuid.New()
	attr := logger.SellerID(id)
	require.Equal(t, "seller_id", attr.Key)
	assert.Equal(t, id.String(), attr.Value.String())

	assert.True(t, logger.SellerID(uuid.Nil).Equal(slog.Attr{}))
}

func TestSubscriptionID(t *testing.T) {
	id := uuid.New()
	attr := logger.SubscriptionID(id)
	require.Equal(t, "subscription_id", attr.Key)
	assert.Equal(t, id.String(), attr.Value.String())

	assert.True(t, logger.SubscriptionID(uuid.Nil).Equal(slog.Attr{}))
}

func TestTemplateID(t *testing.T) {
	attr := logger.TemplateID("pro-monthly")
	require.Equal(t, "template_id", attr.Key)
	assert.Equal(t, "pro-monthly", attr.Value.String())

	assert.True(t, logger.TemplateID("").Equal(slog.Attr{}))
}

func TestResource(t *testing.T) {
	type resource string
	attr := logger.Resource(resource("products"))
	require.Equal(t, "resource", attr.Key)
	assert.Equal(t, "products", attr.Value.String())
}

func TestOperation(t *testing.T) {
	attr := logger.Operation("adjust_usage")
	require.Equal(t, "operation", attr.Key)
	assert.Equal(t, "adjust_usage", attr.Value.String())
}
