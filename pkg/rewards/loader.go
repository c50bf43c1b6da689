package rewards

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/marinade-finance/bonds-settlements/internal/types/invariants"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
	"github.com/marinade-finance/bonds-settlements/pkg/stakeIndex"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RewardsLoader reads the six reward files of an epoch and aggregates them per vote account.
type RewardsLoader struct {
	logger *zap.Logger
}

func NewRewardsLoader(l *zap.Logger) *RewardsLoader {
	return &RewardsLoader{logger: l}
}

// LoadRewardsFromDirectory requires every reward file to be present. Files may be
// empty, but all non-empty files must agree on a single epoch.
func (rl *RewardsLoader) LoadRewardsFromDirectory(dir string, stakeMetas *stakeIndex.StakeMetaCollection) (*RewardsCollection, error) {
	for _, name := range []string{
		InflationRewardsFile,
		JitoPriorityFeeFile,
		MevRewardsFile,
		ValidatorsBlocksRewardsFile,
		ValidatorsInflationRewardsFile,
		ValidatorsMevRewardsFile,
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, errors.Wrapf(err, "required reward file not found: %s", name)
		}
	}

	var (
		inflation           []StakeRewardEntry
		jitoPriorityFee     []StakeRewardEntry
		mev                 []StakeRewardEntry
		validatorsBlocks    []ValidatorBlockRewardEntry
		validatorsInflation []VoteRewardEntry
		validatorsMev       []VoteRewardEntry
	)
	if err := readRewardFile(dir, InflationRewardsFile, &inflation); err != nil {
		return nil, err
	}
	if err := readRewardFile(dir, JitoPriorityFeeFile, &jitoPriorityFee); err != nil {
		return nil, err
	}
	if err := readRewardFile(dir, MevRewardsFile, &mev); err != nil {
		return nil, err
	}
	if err := readRewardFile(dir, ValidatorsBlocksRewardsFile, &validatorsBlocks); err != nil {
		return nil, err
	}
	if err := readRewardFile(dir, ValidatorsInflationRewardsFile, &validatorsInflation); err != nil {
		return nil, err
	}
	if err := readRewardFile(dir, ValidatorsMevRewardsFile, &validatorsMev); err != nil {
		return nil, err
	}

	epochs := []fileEpoch{
		stakeEntriesEpoch(InflationRewardsFile, inflation),
		stakeEntriesEpoch(JitoPriorityFeeFile, jitoPriorityFee),
		stakeEntriesEpoch(MevRewardsFile, mev),
		blockEntriesEpoch(ValidatorsBlocksRewardsFile, validatorsBlocks),
		voteEntriesEpoch(ValidatorsInflationRewardsFile, validatorsInflation),
		voteEntriesEpoch(ValidatorsMevRewardsFile, validatorsMev),
	}
	epoch, err := verifyAllEpochsMatch(epochs)
	if err != nil {
		return nil, err
	}
	rl.logger.Sugar().Infow("All reward files match epoch", zap.Uint64("epoch", epoch))

	stakeToVote := stakeIndex.NewStakeIndex(stakeMetas).StakeToVoteAccount()
	agg := &aggregator{
		logger:      rl.logger,
		stakeToVote: stakeToVote,
		rewards:     make(map[solana.PublicKey]*VoteAccountRewards),
	}

	for _, r := range inflation {
		agg.addStakeReward(r, InflationRewardsFile, func(e *VoteAccountRewards, amount uint64) {
			e.StakersInflationRewards = numbers.SaturatingAdd(e.StakersInflationRewards, amount)
			e.StakersTotalAmount = numbers.SaturatingAdd(e.StakersTotalAmount, amount)
			e.InflationRewards = numbers.SaturatingAdd(e.InflationRewards, amount)
			e.TotalAmount = numbers.SaturatingAdd(e.TotalAmount, amount)
		})
	}
	for _, r := range mev {
		agg.addStakeReward(r, MevRewardsFile, func(e *VoteAccountRewards, amount uint64) {
			e.StakersMevRewards = numbers.SaturatingAdd(e.StakersMevRewards, amount)
			e.StakersTotalAmount = numbers.SaturatingAdd(e.StakersTotalAmount, amount)
			e.MevRewards = numbers.SaturatingAdd(e.MevRewards, amount)
			e.TotalAmount = numbers.SaturatingAdd(e.TotalAmount, amount)
		})
	}
	for _, r := range validatorsBlocks {
		e := agg.entry(r.VoteAccount)
		amount := uint64(r.Amount)
		e.BlockRewards = numbers.SaturatingAdd(e.BlockRewards, amount)
		e.ValidatorsTotalAmount = numbers.SaturatingAdd(e.ValidatorsTotalAmount, amount)
		e.TotalAmount = numbers.SaturatingAdd(e.TotalAmount, amount)
	}
	for _, r := range validatorsInflation {
		e := agg.entry(r.VoteAccount)
		amount := uint64(r.Amount)
		e.InflationRewards = numbers.SaturatingAdd(e.InflationRewards, amount)
		e.ValidatorsTotalAmount = numbers.SaturatingAdd(e.ValidatorsTotalAmount, amount)
		e.TotalAmount = numbers.SaturatingAdd(e.TotalAmount, amount)
	}
	for _, r := range validatorsMev {
		e := agg.entry(r.VoteAccount)
		amount := uint64(r.Amount)
		e.MevRewards = numbers.SaturatingAdd(e.MevRewards, amount)
		e.ValidatorsTotalAmount = numbers.SaturatingAdd(e.ValidatorsTotalAmount, amount)
		e.TotalAmount = numbers.SaturatingAdd(e.TotalAmount, amount)
	}
	// the priority fee stakers received is what the validator gave up from its block rewards
	for _, r := range jitoPriorityFee {
		agg.addStakeReward(r, JitoPriorityFeeFile, func(e *VoteAccountRewards, amount uint64) {
			e.StakersPriorityFeeRewards = numbers.SaturatingAdd(e.StakersPriorityFeeRewards, amount)
			e.StakersTotalAmount = numbers.SaturatingAdd(e.StakersTotalAmount, amount)
			e.JitoPriorityFeeRewards = numbers.SaturatingAdd(e.JitoPriorityFeeRewards, amount)
			e.ValidatorsTotalAmount = numbers.SaturatingSub(e.ValidatorsTotalAmount, amount)
		})
	}

	collection := &RewardsCollection{
		Epoch:                epoch,
		RewardsByVoteAccount: agg.rewards,
	}
	rl.logSummary(collection)
	return collection, nil
}

func (rl *RewardsLoader) logSummary(rc *RewardsCollection) {
	var stakers, validators uint64
	for _, r := range rc.RewardsByVoteAccount {
		stakers = numbers.SaturatingAdd(stakers, r.StakersTotalAmount)
		validators = numbers.SaturatingAdd(validators, r.ValidatorsTotalAmount)
	}
	total := rc.TotalRewards()
	if total != numbers.SaturatingAdd(stakers, validators) {
		rl.logger.Sugar().Warnw("Aggregated rewards do not add up",
			zap.Uint64("total", total),
			zap.Uint64("stakers", stakers),
			zap.Uint64("validators", validators),
		)
	}
	rl.logger.Sugar().Infow("Aggregated rewards",
		zap.Uint64("epoch", rc.Epoch),
		zap.Uint64("totalSol", total/numbers.LamportsPerSol),
		zap.Uint64("stakersSol", stakers/numbers.LamportsPerSol),
		zap.Uint64("validatorsSol", validators/numbers.LamportsPerSol),
		zap.Int("voteAccounts", len(rc.RewardsByVoteAccount)),
	)
}

type aggregator struct {
	logger      *zap.Logger
	stakeToVote map[solana.PublicKey]solana.PublicKey
	rewards     map[solana.PublicKey]*VoteAccountRewards
}

func (a *aggregator) entry(voteAccount solana.PublicKey) *VoteAccountRewards {
	e, ok := a.rewards[voteAccount]
	if !ok {
		e = &VoteAccountRewards{VoteAccount: voteAccount}
		a.rewards[voteAccount] = e
	}
	return e
}

func (a *aggregator) addStakeReward(r StakeRewardEntry, file string, apply func(*VoteAccountRewards, uint64)) {
	voteAccount, ok := a.stakeToVote[r.StakeAccount]
	if !ok {
		a.logger.Sugar().Warnw("No vote account found for stake account",
			zap.String("stakeAccount", r.StakeAccount.String()),
			zap.String("file", file),
		)
		return
	}
	apply(a.entry(voteAccount), uint64(r.Amount))
}

type fileEpoch struct {
	file  string
	epoch *uint64
	err   error
}

func entriesEpoch(file string, epochs []uint64) fileEpoch {
	if len(epochs) == 0 {
		return fileEpoch{file: file}
	}
	first := epochs[0]
	for _, e := range epochs[1:] {
		if e != first {
			return fileEpoch{file: file, err: fmt.Errorf("%w: %s holds epochs %d and %d", invariants.ErrEpochMismatch, file, first, e)}
		}
	}
	return fileEpoch{file: file, epoch: &first}
}

func stakeEntriesEpoch(file string, entries []StakeRewardEntry) fileEpoch {
	epochs := make([]uint64, 0, len(entries))
	for _, e := range entries {
		epochs = append(epochs, e.Epoch)
	}
	return entriesEpoch(file, epochs)
}

func voteEntriesEpoch(file string, entries []VoteRewardEntry) fileEpoch {
	epochs := make([]uint64, 0, len(entries))
	for _, e := range entries {
		epochs = append(epochs, e.Epoch)
	}
	return entriesEpoch(file, epochs)
}

func blockEntriesEpoch(file string, entries []ValidatorBlockRewardEntry) fileEpoch {
	epochs := make([]uint64, 0, len(entries))
	for _, e := range entries {
		epochs = append(epochs, e.Epoch)
	}
	return entriesEpoch(file, epochs)
}

func verifyAllEpochsMatch(epochs []fileEpoch) (uint64, error) {
	var expected *uint64
	var expectedFile string
	for _, fe := range epochs {
		if fe.err != nil {
			return 0, fe.err
		}
		if fe.epoch == nil {
			continue
		}
		if expected == nil {
			expected = fe.epoch
			expectedFile = fe.file
			continue
		}
		if *fe.epoch != *expected {
			return 0, fmt.Errorf("%w: %s has epoch %d but %s has epoch %d",
				invariants.ErrEpochMismatch, fe.file, *fe.epoch, expectedFile, *expected)
		}
	}
	if expected == nil {
		return 0, fmt.Errorf("all reward files are empty")
	}
	return *expected, nil
}

func readRewardFile(dir string, name string, out interface{}) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return errors.Wrapf(err, "failed to read reward file %s", name)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to parse reward file %s", name)
	}
	return nil
}
