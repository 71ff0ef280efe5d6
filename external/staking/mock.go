package staking

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
)

// Mock is an in-memory staking contract that accrues reward at a fixed
// rate per unit staked per call to Tick. A production deployment replaces
// this with a real contract binding; the vault only ever sees the Bond
// interface.
type Mock struct {
	mu sync.Mutex

	staked  *Amount
	pending *Amount

	// RewardPerTick is the reward-token amount credited per call to Tick,
	// split proportionally across however much is currently staked.
	RewardPerTick *Amount
}

func NewMock(rewardPerTick *Amount) *Mock {
	return &Mock{
		staked:        uint256.NewInt(0),
		pending:       uint256.NewInt(0),
		RewardPerTick: new(Amount).Set(rewardPerTick),
	}
}

// Tick simulates the passage of time: if the vault has a nonzero staked
// balance, RewardPerTick accrues into pending. Test code calls this
// explicitly rather than the mock free-running on a timer, keeping harvest
// tests deterministic.
func (m *Mock) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staked.IsZero() {
		// No stake, no accrual. A query against an unstaked vault must
		// report zero pending reward rather than carrying over stale
		// accrual from a position that has since fully unstaked.
		return
	}
	m.pending.Add(m.pending, m.RewardPerTick)
}

func (m *Mock) Stake(ctx context.Context, bondAmount *Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staked.Add(m.staked, bondAmount)
	return nil
}

func (m *Mock) Unstake(ctx context.Context, bondAmount *Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bondAmount.Cmp(m.staked) > 0 {
		return ErrInsufficientStake
	}
	m.staked.Sub(m.staked, bondAmount)
	return nil
}

func (m *Mock) PendingReward(ctx context.Context) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staked.IsZero() {
		return uint256.NewInt(0), nil
	}
	return new(Amount).Set(m.pending), nil
}

func (m *Mock) ClaimReward(ctx context.Context) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claimed := new(Amount).Set(m.pending)
	m.pending.Clear()
	return claimed, nil
}

func (m *Mock) StakedBalance(ctx context.Context) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(Amount).Set(m.staked), nil
}

var _ Bond = (*Mock)(nil)
