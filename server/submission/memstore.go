// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"context"
	"sync"
	"time"
)

// MemStore Store的内存实现，开发和测试时替代postgres使用。
// 行锁用每实体一把互斥锁模拟，加锁顺序与协调器一致，
// 事务内的写入带撤销日志，fn返回错误时整体回滚。
type MemStore struct {
	mu         sync.Mutex
	teams      map[int64]*Team
	users      map[int64]*User
	challenges map[int64]*Challenge
	solves     []*Solve
	teamFlags  map[[2]int64]string
	nextSolve  int64

	teamLocks      map[int64]*sync.Mutex
	userLocks      map[int64]*sync.Mutex
	challengeLocks map[int64]*sync.Mutex
}

func NewMemStore() *MemStore {
	return &MemStore{
		teams:          make(map[int64]*Team),
		users:          make(map[int64]*User),
		challenges:     make(map[int64]*Challenge),
		teamFlags:      make(map[[2]int64]string),
		teamLocks:      make(map[int64]*sync.Mutex),
		userLocks:      make(map[int64]*sync.Mutex),
		challengeLocks: make(map[int64]*sync.Mutex),
	}
}

// ========== 测试数据装载 ==========

func (s *MemStore) PutTeam(t *Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.teams[t.ID] = &cp
}

func (s *MemStore) PutUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

func (s *MemStore) PutChallenge(ch *Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ch
	cp.UnlockedBy = append([]int64(nil), ch.UnlockedBy...)
	s.challenges[ch.ID] = &cp
}

func (s *MemStore) PutTeamFlag(teamID, challengeID int64, flag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teamFlags[[2]int64{teamID, challengeID}] = flag
}

// Solves 全部台账条目的快照（测试断言用）
func (s *MemStore) Solves() []Solve {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Solve, 0, len(s.solves))
	for _, sv := range s.solves {
		out = append(out, *sv)
	}
	return out
}

// ========== 事务 ==========

func (s *MemStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{s: s}
	err := fn(tx)
	if err != nil {
		tx.rollback()
	}
	tx.release()
	return err
}

type memTx struct {
	s    *MemStore
	held []*sync.Mutex
	undo []func()
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}

func (t *memTx) acquire(locks map[int64]*sync.Mutex, id int64) {
	t.s.mu.Lock()
	mu, ok := locks[id]
	if !ok {
		mu = &sync.Mutex{}
		locks[id] = mu
	}
	t.s.mu.Unlock()
	mu.Lock()
	t.held = append(t.held, mu)
}

func (t *memTx) LockTeam(ctx context.Context, id int64) (*Team, error) {
	t.acquire(t.s.teamLocks, id)
	return t.s.GetTeam(ctx, id)
}

func (t *memTx) LockUser(ctx context.Context, id int64) (*User, error) {
	t.acquire(t.s.userLocks, id)
	return t.s.GetUser(ctx, id)
}

func (t *memTx) LockChallenge(ctx context.Context, id int64) (*Challenge, error) {
	t.acquire(t.s.challengeLocks, id)
	return t.s.GetChallenge(ctx, id)
}

func (t *memTx) ExistsCorrectSolve(ctx context.Context, challengeID, teamID int64) (bool, error) {
	return t.s.ExistsCorrectSolve(ctx, challengeID, teamID)
}

func (t *memTx) CountAttempts(ctx context.Context, challengeID, teamID int64) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	count := 0
	for _, sv := range t.s.solves {
		if sv.ChallengeID == challengeID && sv.TeamID == teamID {
			count++
		}
	}
	return count, nil
}

func (t *memTx) CountCorrectSolves(ctx context.Context, challengeID int64) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	count := 0
	for _, sv := range t.s.solves {
		if sv.ChallengeID == challengeID && sv.Correct {
			count++
		}
	}
	return count, nil
}

func (t *memTx) SolvedChallengeIDs(ctx context.Context, teamID int64) (map[int64]bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	solved := make(map[int64]bool)
	for _, sv := range t.s.solves {
		if sv.TeamID == teamID && sv.Correct {
			solved[sv.ChallengeID] = true
		}
	}
	return solved, nil
}

func (t *memTx) InsertSolve(ctx context.Context, sv *Solve) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.nextSolve++
	sv.ID = t.s.nextSolve
	cp := *sv
	inserted := &cp
	t.s.solves = append(t.s.solves, inserted)
	// 回滚只能删本事务插入的那一行，并发事务可能先提交了新行
	t.undo = append(t.undo, func() {
		for i, existing := range t.s.solves {
			if existing == inserted {
				t.s.solves = append(t.s.solves[:i], t.s.solves[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (t *memTx) AddTeamPoints(ctx context.Context, teamID int64, points int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	team, ok := t.s.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	team.Points += points
	t.undo = append(t.undo, func() { team.Points -= points })
	return nil
}

func (t *memTx) AddUserPoints(ctx context.Context, userID int64, points int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	user, ok := t.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.Points += points
	t.undo = append(t.undo, func() { user.Points -= points })
	return nil
}

func (t *memTx) SetFirstBlood(ctx context.Context, challengeID, userID int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	ch, ok := t.s.challenges[challengeID]
	if !ok {
		return ErrNotFound
	}
	if ch.FirstBloodID != nil {
		return nil
	}
	id := userID
	ch.FirstBloodID = &id
	t.undo = append(t.undo, func() { ch.FirstBloodID = nil })
	return nil
}

func (t *memTx) TeamFlag(ctx context.Context, teamID, challengeID int64) (string, bool, error) {
	return t.s.TeamFlag(ctx, teamID, challengeID)
}

// ========== 只读路径 ==========

func (s *MemStore) GetUser(ctx context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	if u.TeamID != nil {
		teamID := *u.TeamID
		cp.TeamID = &teamID
	}
	return &cp, nil
}

func (s *MemStore) GetTeam(ctx context.Context, id int64) (*Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemStore) GetChallenge(ctx context.Context, id int64) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ch
	cp.UnlockedBy = append([]int64(nil), ch.UnlockedBy...)
	if ch.FirstBloodID != nil {
		fb := *ch.FirstBloodID
		cp.FirstBloodID = &fb
	}
	return &cp, nil
}

func (s *MemStore) ExistsCorrectSolve(ctx context.Context, challengeID, teamID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sv := range s.solves {
		if sv.ChallengeID == challengeID && sv.TeamID == teamID && sv.Correct {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) TeamFlag(ctx context.Context, teamID, challengeID int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flag, ok := s.teamFlags[[2]int64{teamID, challengeID}]
	return flag, ok, nil
}

func (s *MemStore) LastIncorrectSeconds(ctx context.Context, teamID int64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	for _, sv := range s.solves {
		if sv.TeamID == teamID && !sv.Correct && sv.SubmittedAt.After(last) {
			last = sv.SubmittedAt
		}
	}
	if last.IsZero() {
		return -1, nil
	}
	return time.Since(last).Seconds(), nil
}
