package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alert-rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAlertRules(t *testing.T) {
	path := writeRules(t, `
default:
  lowStockThreshold: 15
  expiryWarningDays: 45
screens:
  dashboard:
    lowStockThreshold: 20
`)

	rules, err := loadAlertRules(path)
	require.NoError(t, err)

	assert.Equal(t, domain.AlertThresholds{LowStockThreshold: 15, ExpiryWarningDays: 45}, rules.Default)
	assert.Equal(t, domain.AlertThresholds{LowStockThreshold: 20, ExpiryWarningDays: 45}, rules.For("dashboard"))
	assert.Equal(t, rules.Default, rules.For("pos"))
}

func TestLoadAlertRules_Defaults(t *testing.T) {
	rules, err := loadAlertRules("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAlertThresholds(), rules.Default)

	// a file naming only screens keeps the default thresholds
	rules, err = loadAlertRules(writeRules(t, "screens:\n  pos:\n    expiryWarningDays: 7\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAlertThresholds().LowStockThreshold, rules.For("pos").LowStockThreshold)
	assert.Equal(t, 7, rules.For("pos").ExpiryWarningDays)
}

func TestLoadAlertRules_Rejects(t *testing.T) {
	_, err := loadAlertRules(writeRules(t, "default:\n  lowStockThreshold: -1\n  expiryWarningDays: 30\n"))
	assert.Error(t, err)

	_, err = loadAlertRules(writeRules(t, "default: [1, 2"))
	assert.Error(t, err)

	_, err = loadAlertRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitList(" a:9092, ,b:9092 "))
}
