package progression

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// ============================================================================
// In-memory ProgressionStore для тестов движка
// ============================================================================

type memData struct {
	challenges      map[uint]*entity.Challenge
	stages          map[uint]*entity.Stage
	users           map[uint]*entity.User
	progresses      map[uint]*entity.ChallengeProgress
	stageProgresses map[uint]*entity.StageProgress
	levels          []entity.Level
	nextID          uint
}

func newMemData() *memData {
	return &memData{
		challenges:      map[uint]*entity.Challenge{},
		stages:          map[uint]*entity.Stage{},
		users:           map[uint]*entity.User{},
		progresses:      map[uint]*entity.ChallengeProgress{},
		stageProgresses: map[uint]*entity.StageProgress{},
		nextID:          1,
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.challenges {
		cp := *v
		cp.Stages = nil
		c.challenges[k] = &cp
	}
	for k, v := range d.stages {
		cp := *v
		c.stages[k] = &cp
	}
	for k, v := range d.users {
		cp := *v
		c.users[k] = &cp
	}
	for k, v := range d.progresses {
		cp := *v
		c.progresses[k] = &cp
	}
	for k, v := range d.stageProgresses {
		cp := *v
		c.stageProgresses[k] = &cp
	}
	c.levels = append([]entity.Level(nil), d.levels...)
	c.nextID = d.nextID
	return c
}

func (d *memData) id() uint {
	id := d.nextID
	d.nextID++
	return id
}

type memState struct {
	// txMu сериализует транзакции так же, как блокировки строк в PostgreSQL
	txMu   sync.Mutex
	mu     sync.RWMutex
	data   *memData
	failOn map[string]error
}

type memStore struct {
	state *memState
	inTx  bool
}

var _ repository.ProgressionStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{state: &memState{data: newMemData(), failOn: map[string]error{}}}
}

func (s *memStore) fail(op string) error {
	return s.state.failOn[op]
}

// ---- наполнение ----

func (s *memStore) addUser(xp int) *entity.User {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	u := &entity.User{ID: s.state.data.id(), Username: "user", Role: entity.RoleUser, Level: 1, XP: xp, IsActive: true}
	s.state.data.users[u.ID] = u
	cp := *u
	return &cp
}

func (s *memStore) addChallenge(c *entity.Challenge, stages []entity.Stage) *entity.Challenge {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	c.ID = s.state.data.id()
	stored := *c
	stored.Stages = nil
	s.state.data.challenges[c.ID] = &stored
	c.Stages = nil
	for _, st := range stages {
		st.ID = s.state.data.id()
		st.ChallengeID = c.ID
		cp := st
		s.state.data.stages[st.ID] = &cp
		c.Stages = append(c.Stages, st)
	}
	return c
}

func (s *memStore) addLevels(levels ...entity.Level) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for _, l := range levels {
		l.ID = s.state.data.id()
		s.state.data.levels = append(s.state.data.levels, l)
	}
}

func (s *memStore) user(id uint) entity.User {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return *s.state.data.users[id]
}

func (s *memStore) mutateUser(id uint, fn func(u *entity.User)) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	fn(s.state.data.users[id])
}

func (s *memStore) mutateChallenge(id uint, fn func(c *entity.Challenge)) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	fn(s.state.data.challenges[id])
}

func (s *memStore) progressCount() int {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return len(s.state.data.progresses)
}

func (s *memStore) progressOf(userID, challengeID uint) *entity.ChallengeProgress {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	for _, p := range s.state.data.progresses {
		if p.UserID == userID && p.ChallengeID == challengeID {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (s *memStore) stageProgressOf(progressID, stageID uint) *entity.StageProgress {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.findStageProgress(progressID, stageID)
}

// ---- repository.ProgressionStore ----

func (s *memStore) challengeWithStages(id uint) (*entity.Challenge, error) {
	c, ok := s.state.data.challenges[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *c
	cp.Stages = nil
	for _, st := range s.state.data.stages {
		if st.ChallengeID == id {
			cp.Stages = append(cp.Stages, *st)
		}
	}
	sort.Slice(cp.Stages, func(i, j int) bool { return cp.Stages[i].Order < cp.Stages[j].Order })
	return &cp, nil
}

func (s *memStore) GetChallenge(_ context.Context, id uint) (*entity.Challenge, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.challengeWithStages(id)
}

func (s *memStore) LockChallenge(ctx context.Context, id uint) (*entity.Challenge, error) {
	return s.GetChallenge(ctx, id)
}

func (s *memStore) GetStage(_ context.Context, id uint) (*entity.Stage, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	st, ok := s.state.data.stages[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *memStore) GetUser(_ context.Context, id uint) (*entity.User, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	u, ok := s.state.data.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetProgress(_ context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error) {
	if p := s.progressOf(userID, challengeID); p != nil {
		return p, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *memStore) LockProgress(ctx context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error) {
	return s.GetProgress(ctx, userID, challengeID)
}

func (s *memStore) CountParticipants(_ context.Context, challengeID uint) (int64, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var n int64
	for _, p := range s.state.data.progresses {
		if p.ChallengeID == challengeID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CreateProgress(_ context.Context, progress *entity.ChallengeProgress) error {
	if err := s.fail("CreateProgress"); err != nil {
		return err
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for _, p := range s.state.data.progresses {
		if p.UserID == progress.UserID && p.ChallengeID == progress.ChallengeID {
			return apperrors.ErrConflict
		}
	}
	progress.ID = s.state.data.id()
	cp := *progress
	cp.Challenge = nil
	cp.StageProgresses = nil
	s.state.data.progresses[cp.ID] = &cp
	return nil
}

func (s *memStore) findStageProgress(progressID, stageID uint) *entity.StageProgress {
	for _, sp := range s.state.data.stageProgresses {
		if sp.ProgressID == progressID && sp.StageID == stageID {
			cp := *sp
			return &cp
		}
	}
	return nil
}

func (s *memStore) GetStageProgress(_ context.Context, progressID, stageID uint) (*entity.StageProgress, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	if sp := s.findStageProgress(progressID, stageID); sp != nil {
		return sp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *memStore) CompleteStage(_ context.Context, sp *entity.StageProgress) (bool, error) {
	if err := s.fail("CompleteStage"); err != nil {
		return false, err
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for _, existing := range s.state.data.stageProgresses {
		if existing.ProgressID == sp.ProgressID && existing.StageID == sp.StageID {
			if existing.Status == entity.StageStatusCompleted {
				return false, nil
			}
			sp.ID = existing.ID
			sp.Status = entity.StageStatusCompleted
			cp := *sp
			s.state.data.stageProgresses[cp.ID] = &cp
			return true, nil
		}
	}
	sp.ID = s.state.data.id()
	sp.Status = entity.StageStatusCompleted
	cp := *sp
	s.state.data.stageProgresses[cp.ID] = &cp
	return true, nil
}

func (s *memStore) CountCompletedStages(_ context.Context, progressID uint) (int64, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var n int64
	for _, sp := range s.state.data.stageProgresses {
		if sp.ProgressID == progressID && sp.Status == entity.StageStatusCompleted {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountStages(_ context.Context, challengeID uint) (int64, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var n int64
	for _, st := range s.state.data.stages {
		if st.ChallengeID == challengeID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) MarkProgressCompleted(_ context.Context, progressID uint, at time.Time) (bool, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	p, ok := s.state.data.progresses[progressID]
	if !ok || p.Status != entity.ProgressStatusActive {
		return false, nil
	}
	p.Status = entity.ProgressStatusCompleted
	p.CompletedAt = &at
	return true, nil
}

func (s *memStore) MarkProgressAbandoned(_ context.Context, progressID uint) (bool, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	p, ok := s.state.data.progresses[progressID]
	if !ok || p.Status != entity.ProgressStatusActive {
		return false, nil
	}
	p.Status = entity.ProgressStatusAbandoned
	return true, nil
}

func (s *memStore) AddUserXP(_ context.Context, userID uint, delta int) (int, error) {
	if err := s.fail("AddUserXP"); err != nil {
		return 0, err
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	u, ok := s.state.data.users[userID]
	if !ok {
		return 0, apperrors.ErrNotFound
	}
	u.XP += delta
	return u.XP, nil
}

func (s *memStore) SetUserLevel(_ context.Context, userID uint, level int) error {
	if err := s.fail("SetUserLevel"); err != nil {
		return err
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	u, ok := s.state.data.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Level = level
	return nil
}

func (s *memStore) ListActiveLevels(_ context.Context) ([]entity.Level, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var out []entity.Level
	for _, l := range s.state.data.levels {
		if l.IsActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinXP < out[j].MinXP })
	return out, nil
}

func (s *memStore) ListUserProgress(_ context.Context, userID uint, status string) ([]entity.ChallengeProgress, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var out []entity.ChallengeProgress
	for _, p := range s.state.data.progresses {
		if p.UserID != userID || (status != "" && p.Status != status) {
			continue
		}
		cp := *p
		cp.Challenge, _ = s.challengeWithStages(p.ChallengeID)
		cp.StageProgresses = []entity.StageProgress{}
		for _, sp := range s.state.data.stageProgresses {
			if sp.ProgressID == p.ID {
				cp.StageProgresses = append(cp.StageProgresses, *sp)
			}
		}
		sort.Slice(cp.StageProgresses, func(i, j int) bool {
			return cp.StageProgresses[i].StageID < cp.StageProgresses[j].StageID
		})
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (s *memStore) WithinTransaction(ctx context.Context, fn func(tx repository.ProgressionStore) error) error {
	if s.inTx {
		return fn(s)
	}
	s.state.txMu.Lock()
	defer s.state.txMu.Unlock()

	s.state.mu.RLock()
	snapshot := s.state.data.clone()
	s.state.mu.RUnlock()

	if err := fn(&memStore{state: s.state, inTx: true}); err != nil {
		s.state.mu.Lock()
		s.state.data = snapshot
		s.state.mu.Unlock()
		return err
	}
	return nil
}

// ============================================================================
// Получатель событий для тестов
// ============================================================================

type recordingNotifier struct {
	mu        sync.Mutex
	joined    []uint
	submitted []*SubmitResult
	abandoned []uint
}

func (n *recordingNotifier) ChallengeJoined(_ context.Context, _ uint, p *entity.ChallengeProgress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joined = append(n.joined, p.ChallengeID)
}

func (n *recordingNotifier) StageSubmitted(_ context.Context, _ uint, _ *entity.Challenge, r *SubmitResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, r)
}

func (n *recordingNotifier) ChallengeAbandoned(_ context.Context, _ uint, p *entity.ChallengeProgress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.abandoned = append(n.abandoned, p.ChallengeID)
}
