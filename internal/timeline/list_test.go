package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/testutil"
)

func TestList_Edges(t *testing.T) {
	l := NewList()

	_, ok := l.TopID()
	assert.False(t, ok)
	_, ok = l.BottomID()
	assert.False(t, ok)

	l.merge("", mergePlan{page: testutil.Statuses("12", "11")})
	require.NoError(t, l.addGap("20"))
	require.NoError(t, l.addGap("9"))

	assert.Equal(t, []string{"gap:20", "12", "11", "gap:9"}, render(l.Items()))
	top, _ := l.TopID()
	assert.Equal(t, "12", top, "TopID skips placeholders")
	bottom, _ := l.BottomID()
	assert.Equal(t, "9", bottom)
	below, ok := l.IDBelow("11")
	assert.True(t, ok)
	assert.Equal(t, "9", below)
	assert.True(t, l.IsGap("9"))
	assert.False(t, l.IsGap("11"))
	assert.Equal(t, 4, l.Len())
}

func TestList_NumericOrder(t *testing.T) {
	l := NewList()
	l.merge("", mergePlan{page: testutil.Statuses("9", "100", "10")})
	assert.Equal(t, []string{"100", "10", "9"}, render(l.Items()))
}

func TestList_UpdateAndRemove(t *testing.T) {
	l := NewList()
	l.merge("", mergePlan{page: testutil.Statuses("2", "1")})
	require.NoError(t, l.addGap("0"))

	assert.True(t, l.Update("2", func(st *model.Status) { st.Favourited = true }))
	assert.False(t, l.Update("0", func(*model.Status) {}), "placeholders have no status")
	assert.False(t, l.Update("7", func(*model.Status) {}))

	l.Remove("1")
	items := l.Items()
	assert.Equal(t, []string{"2", "gap:0"}, render(items))
	assert.True(t, items[0].(model.StatusItem).Status.Favourited)
}

func TestList_ItemsIsSnapshot(t *testing.T) {
	l := NewList()
	l.merge("", mergePlan{page: testutil.Statuses("1")})
	snap := l.Items()
	l.Remove("1")
	assert.Len(t, snap, 1)
}
