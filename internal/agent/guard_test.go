package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardCountsConsecutiveCalls(t *testing.T) {
	g := NewRepetitionGuard()

	count, warning := g.Observe(KindListMail)
	assert.Equal(t, 1, count)
	assert.Empty(t, warning)

	count, warning = g.Observe(KindListMail)
	assert.Equal(t, 2, count)
	assert.Equal(t, "WARNING: You have already called ListMail 2 times in a row. You should move on.", warning)

	count, _ = g.Observe(KindListMail)
	assert.Equal(t, 3, count)
}

func TestGuardResetsOnOtherKind(t *testing.T) {
	g := NewRepetitionGuard()
	g.Observe(KindReadMail)
	g.Observe(KindReadMail)

	count, warning := g.Observe(KindSendMail)
	assert.Equal(t, 1, count)
	assert.Empty(t, warning)

	count, _ = g.Observe(KindReadMail)
	assert.Equal(t, 1, count)
}
