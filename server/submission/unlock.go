// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import "time"

// IsUnlocked 判断题目对某队伍是否解锁。
// auto_unlock直接解锁；否则要求所有前置题目均已被该队伍解出，且已到放题时间。
// solved为该队伍已正确解出的题目ID集合，批量标注时一次查询后复用，避免逐题查库。
func IsUnlocked(ch *Challenge, solved map[int64]bool, now time.Time) bool {
	if ch.AutoUnlock {
		return true
	}
	for _, id := range ch.UnlockedBy {
		if !solved[id] {
			return false
		}
	}
	return !ch.ReleaseTime.After(now)
}

// ReleaseElapsed 是否已到放题时间
func ReleaseElapsed(ch *Challenge, now time.Time) bool {
	return !ch.ReleaseTime.After(now)
}
