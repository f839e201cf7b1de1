// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsUnlocked(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	released := now.Add(-time.Hour)
	notYet := now.Add(time.Hour)

	t.Run("Auto Unlock", func(t *testing.T) {
		ch := &Challenge{ID: 1, AutoUnlock: true, ReleaseTime: notYet, UnlockedBy: []int64{99}}
		// auto_unlock忽略前置题目和放题时间
		assert.True(t, IsUnlocked(ch, map[int64]bool{}, now))
	})

	t.Run("All Prerequisites Solved", func(t *testing.T) {
		ch := &Challenge{ID: 3, ReleaseTime: released, UnlockedBy: []int64{1, 2}}
		assert.True(t, IsUnlocked(ch, map[int64]bool{1: true, 2: true}, now))
	})

	t.Run("Missing Prerequisite", func(t *testing.T) {
		ch := &Challenge{ID: 3, ReleaseTime: released, UnlockedBy: []int64{1, 2}}
		assert.False(t, IsUnlocked(ch, map[int64]bool{1: true}, now))
	})

	t.Run("Release Time Not Reached", func(t *testing.T) {
		ch := &Challenge{ID: 3, ReleaseTime: notYet, UnlockedBy: []int64{1}}
		assert.False(t, IsUnlocked(ch, map[int64]bool{1: true}, now))
	})

	t.Run("No Prerequisites Only Release Time", func(t *testing.T) {
		ch := &Challenge{ID: 4, ReleaseTime: released}
		assert.True(t, IsUnlocked(ch, map[int64]bool{}, now))
	})
}

func TestAttemptLimit(t *testing.T) {
	t.Run("Configured Limit", func(t *testing.T) {
		ch := &Challenge{PointsConfig: json.RawMessage(`{"points":100,"attempt_limit":3}`)}
		assert.Equal(t, 3, ch.AttemptLimit())
	})

	t.Run("Missing Means Unlimited", func(t *testing.T) {
		ch := &Challenge{PointsConfig: json.RawMessage(`{"points":100}`)}
		assert.Equal(t, 0, ch.AttemptLimit())
	})

	t.Run("Negative Means Unlimited", func(t *testing.T) {
		ch := &Challenge{PointsConfig: json.RawMessage(`{"attempt_limit":-5}`)}
		assert.Equal(t, 0, ch.AttemptLimit())
	})

	t.Run("Broken Config Means Unlimited", func(t *testing.T) {
		ch := &Challenge{PointsConfig: json.RawMessage(`not json`)}
		assert.Equal(t, 0, ch.AttemptLimit())
	})
}
