package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditEventCategory(t *testing.T) {
	assert.Equal(t, CategorySecurity, EventForcedSignOut.Category())
	assert.Equal(t, CategoryCompliance, EventPrimaryEmailChanged.Category())
	assert.Equal(t, CategoryOperations, EventSessionRefreshed.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("unknown").Category())
}
