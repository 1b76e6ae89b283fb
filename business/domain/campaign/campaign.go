package campaign

import (
	"github.com/google/uuid"
	"github.com/qubic/go-crowdsensing/entities"
	"go.uber.org/zap"
	"sync"
	"time"
)

// KeyChunkSize is the chunk size announced with every issued encryption key.
const KeyChunkSize = 256

// Config holds the construction parameters of a campaign.
type Config struct {
	Owner           string
	MinParticipants int
	RewardAmount    uint64
	Fee             uint64
}

// Snapshot is the observable campaign record.
type Snapshot struct {
	ID                  string
	Cycle               uint32
	MinParticipants     int
	RewardAmount        uint64
	CurrentParticipants int
	IsClosed            bool
}

// Payout is a single reward transfer made by DistributeRewards.
type Payout struct {
	Participant string
	Amount      uint64
}

// Recorder receives operational measurements. The metrics package provides
// the prometheus implementation.
type Recorder interface {
	IncSubmissions()
	IncVerifications(valid bool)
	AddDistributedRewards(count int, total uint64)
	SetEscrowBalance(balance uint64)
	IncRejected(operation string, kind string)
}

type nopRecorder struct{}

func (nopRecorder) IncSubmissions()                   {}
func (nopRecorder) IncVerifications(bool)             {}
func (nopRecorder) AddDistributedRewards(int, uint64) {}
func (nopRecorder) SetEscrowBalance(uint64)           {}
func (nopRecorder) IncRejected(string, string)        {}

type Option func(*Service)

func WithID(id string) Option {
	return func(s *Service) { s.id = id }
}

func WithSelector(selector Selector) Option {
	return func(s *Service) { s.selector = selector }
}

func WithWallet(wallet Wallet) Option {
	return func(s *Service) { s.wallet = wallet }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// Service owns the complete state of one campaign: access control, verifier
// registry, fee, participant records, escrow and event log. Every public
// method runs under a single lock and either applies completely or returns
// an *Error without changing anything.
type Service struct {
	mu sync.Mutex

	id    string
	owner string
	cycle uint32

	minParticipants     int
	rewardAmount        uint64
	currentParticipants int
	closed              bool

	fee       uint64
	escrow    escrow
	verifiers *registry

	participants map[string]*participant
	// submission order of the current cycle, rewards are paid in this order
	submitted   []string
	assignments map[string]int

	events []entities.Event

	selector Selector
	wallet   Wallet
	now      func() time.Time
	logger   *zap.SugaredLogger
	recorder Recorder
}

func New(cfg Config, opts ...Option) (*Service, error) {
	if cfg.Owner == "" {
		return nil, invalidArgument("owner is required")
	}
	if cfg.MinParticipants < 0 {
		return nil, invalidArgument("minimum participants must not be negative")
	}

	s := &Service{
		owner:           cfg.Owner,
		cycle:           1,
		minParticipants: cfg.MinParticipants,
		rewardAmount:    cfg.RewardAmount,
		fee:             cfg.Fee,
		verifiers:       newRegistry(),
		participants:    make(map[string]*participant),
		assignments:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.selector == nil {
		s.selector = NewLeastAssignedSelector(uint64(time.Now().UnixNano()))
	}
	if s.wallet == nil {
		s.wallet = NewAccounts()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}

	s.logger.Infow("Campaign created", "campaign", s.id, "owner", s.owner,
		"minParticipants", s.minParticipants, "rewardAmount", s.rewardAmount, "fee", s.fee)
	return s, nil
}

func (s *Service) ID() string {
	return s.id
}

func (s *Service) Owner() string {
	return s.owner
}

func (s *Service) requireOwner(caller string) error {
	if caller != s.owner {
		return ErrUnauthorized
	}
	return nil
}

// creditable checks that every payout fits into the receiving wallet balance.
// Handles must be distinct.
func (s *Service) creditable(payouts ...Payout) error {
	for _, p := range payouts {
		if _, err := addAmount(s.wallet.BalanceOf(p.Participant), p.Amount); err != nil {
			return err
		}
	}
	return nil
}

// credit runs after creditable, a failure here means the wallet was credited
// concurrently from outside the campaign.
func (s *Service) credit(handle string, amount uint64) {
	if err := s.wallet.Credit(handle, amount); err != nil {
		s.logger.Errorw("Wallet credit failed after check", "campaign", s.id, "handle", handle, "amount", amount, "error", err)
	}
}

func (s *Service) reject(operation, caller string, err error) error {
	s.recorder.IncRejected(operation, string(KindOf(err)))
	s.logger.Warnw("Operation rejected", "campaign", s.id, "operation", operation, "caller", caller, "error", err)
	return err
}

func (s *Service) AddVerifier(caller, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return s.reject("addVerifier", caller, err)
	}
	if handle == "" {
		return s.reject("addVerifier", caller, invalidArgument("verifier handle is required"))
	}

	if s.verifiers.add(handle) {
		s.emit(entities.Event{Type: entities.EventVerifierAdded, Verifier: handle})
		s.logger.Infow("Verifier added", "campaign", s.id, "verifier", handle)
	}
	return nil
}

// RemoveVerifier excludes the verifier from future assignments. Participants
// already assigned to it stay bound to it.
func (s *Service) RemoveVerifier(caller, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return s.reject("removeVerifier", caller, err)
	}

	if s.verifiers.remove(handle) {
		s.emit(entities.Event{Type: entities.EventVerifierRemoved, Verifier: handle})
		s.logger.Infow("Verifier removed", "campaign", s.id, "verifier", handle)
	}
	return nil
}

func (s *Service) IsVerifier(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.verifiers.contains(handle)
}

func (s *Service) Verifiers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.verifiers.list()
}

func (s *Service) SetFee(caller string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return s.reject("setFee", caller, err)
	}

	s.fee = amount
	s.emit(entities.Event{Type: entities.EventFeeUpdated, Amount: amount})
	s.logger.Infow("Fee updated", "campaign", s.id, "fee", amount)
	return nil
}

func (s *Service) Fee() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fee
}

// RequestEncryptionKey marks the caller as key holder and announces the key
// generation. Repeated requests keep the key reference and announce again.
func (s *Service) RequestEncryptionKey(caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller == "" {
		return s.reject("requestEncryptionKey", caller, invalidArgument("caller handle is required"))
	}

	p := s.participantFor(caller)
	if !p.hasKey {
		p.hasKey = true
		p.keyRef = keyReference(s.id, s.cycle, caller)
	}
	s.emit(entities.Event{Type: entities.EventEncryptionKeyIssued, User: caller, ChunkSize: KeyChunkSize})
	return nil
}

func (s *Service) participantFor(handle string) *participant {
	p, ok := s.participants[handle]
	if !ok {
		p = &participant{}
		s.participants[handle] = p
	}
	return p
}

// SubmitData records the data location of the caller, assigns a verifier
// and moves the paid amount into the escrow. Any amount above the fee is
// kept in the escrow.
func (s *Service) SubmitData(caller, location string, paid uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller == "" {
		return "", s.reject("submitData", caller, invalidArgument("caller handle is required"))
	}
	if s.closed {
		return "", s.reject("submitData", caller, ErrCampaignClosed)
	}
	if paid < s.fee {
		return "", s.reject("submitData", caller, ErrInsufficientFee)
	}
	if s.verifiers.len() == 0 {
		return "", s.reject("submitData", caller, ErrNoVerifiersAvailable)
	}
	if p, ok := s.participants[caller]; ok && p.submitted {
		return "", s.reject("submitData", caller, ErrAlreadySubmitted)
	}
	if location == "" {
		return "", s.reject("submitData", caller, invalidArgument("data location is required"))
	}
	balance, err := s.escrow.creditable(paid)
	if err != nil {
		return "", s.reject("submitData", caller, err)
	}

	verifier := s.selectVerifier(caller)

	p := s.participantFor(caller)
	p.submitted = true
	p.dataLocation = location
	p.assignedVerifier = verifier
	p.feePaid = s.fee
	s.submitted = append(s.submitted, caller)
	s.assignments[verifier]++
	s.escrow.balance = balance

	s.emit(entities.Event{Type: entities.EventDataSubmitted, User: caller, DataLocation: location, Verifier: verifier, Amount: paid})
	s.recorder.IncSubmissions()
	s.recorder.SetEscrowBalance(s.escrow.balance)
	s.logger.Infow("Data submitted", "campaign", s.id, "participant", caller, "verifier", verifier, "paid", paid)
	return verifier, nil
}

// selectVerifier expects a non-empty registry.
func (s *Service) selectVerifier(participant string) string {
	handles := s.verifiers.list()
	candidates := make([]Candidate, 0, len(handles))
	for _, h := range handles {
		candidates = append(candidates, Candidate{Handle: h, Assigned: s.assignments[h]})
	}

	selected := s.selector.Select(Selection{
		Participant: participant,
		Submissions: len(s.submitted),
		Candidates:  candidates,
	})
	if !s.verifiers.contains(selected) {
		s.logger.Errorw("Selector returned unknown verifier, using first candidate", "campaign", s.id, "selected", selected)
		return candidates[0].Handle
	}
	return selected
}

// AssignedVerifier returns the verifier bound to the participant in the
// current cycle, or an empty string.
func (s *Service) AssignedVerifier(participant string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.participants[participant]; ok {
		return p.assignedVerifier
	}
	return ""
}

func (s *Service) Participant(handle string) (Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[handle]
	if !ok {
		return Participant{}, false
	}
	return p.view(handle), true
}

// assignedTo returns the submitted record of participant if caller is its
// assigned verifier.
func (s *Service) assignedTo(caller, participant string) (*participant, error) {
	p, ok := s.participants[participant]
	if !ok || !p.submitted || p.assignedVerifier != caller {
		return nil, ErrNotAssignedVerifier
	}
	return p, nil
}

// RequestDataVerification hands the data location and the key reference of
// a participant to its assigned verifier.
func (s *Service) RequestDataVerification(caller, participant string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.assignedTo(caller, participant)
	if err != nil {
		return "", "", s.reject("requestDataVerification", caller, err)
	}
	return p.dataLocation, p.keyRef, nil
}

// VerifyData records the verdict of the assigned verifier. A valid verdict
// counts the participant towards the threshold and pays the verifier half of
// the fee the participant paid. An invalid verdict is final and pays nothing.
func (s *Service) VerifyData(caller, participant string, isValid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.assignedTo(caller, participant)
	if err != nil {
		return s.reject("verifyData", caller, err)
	}
	if s.closed {
		return s.reject("verifyData", caller, ErrCampaignClosed)
	}
	if p.reviewed {
		return s.reject("verifyData", caller, ErrAlreadyVerified)
	}

	valid := isValid
	if !isValid {
		p.reviewed = true
		s.emit(entities.Event{Type: entities.EventDataVerified, Verifier: caller, User: participant, IsValid: &valid})
		s.recorder.IncVerifications(false)
		s.logger.Infow("Data rejected", "campaign", s.id, "participant", participant, "verifier", caller)
		return nil
	}

	share := p.feePaid / 2
	if !s.escrow.covers(share) {
		return s.reject("verifyData", caller, ErrInsufficientContractBalance)
	}
	if err := s.creditable(Payout{Participant: caller, Amount: share}); err != nil {
		return s.reject("verifyData", caller, err)
	}

	p.reviewed = true
	p.verified = true
	s.currentParticipants++
	s.escrow.debit(share)
	s.credit(caller, share)

	s.emit(entities.Event{Type: entities.EventDataVerified, Verifier: caller, User: participant, IsValid: &valid})
	s.emit(entities.Event{Type: entities.EventVerifierPaid, Verifier: caller, User: participant, Amount: share})
	s.recorder.IncVerifications(true)
	s.recorder.SetEscrowBalance(s.escrow.balance)
	s.logger.Infow("Data verified", "campaign", s.id, "participant", participant, "verifier", caller,
		"share", share, "currentParticipants", s.currentParticipants)
	return nil
}

// DistributeRewards pays the reward to every verified participant that was
// not rewarded yet and closes the campaign. Nothing is paid unless the
// threshold is met and the escrow covers the whole batch.
func (s *Service) DistributeRewards(caller string) ([]Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return nil, s.reject("distributeRewards", caller, err)
	}
	if s.closed {
		return nil, s.reject("distributeRewards", caller, ErrCampaignClosed)
	}
	if s.currentParticipants < s.minParticipants {
		return nil, s.reject("distributeRewards", caller, ErrThresholdNotMet)
	}

	var batch []string
	for _, handle := range s.submitted {
		p := s.participants[handle]
		if p.verified && !p.rewarded {
			batch = append(batch, handle)
		}
	}
	total, err := mulAmount(s.rewardAmount, len(batch))
	if err != nil {
		return nil, s.reject("distributeRewards", caller, err)
	}
	if !s.escrow.covers(total) {
		return nil, s.reject("distributeRewards", caller, ErrInsufficientContractBalance)
	}
	payouts := make([]Payout, 0, len(batch))
	for _, handle := range batch {
		payouts = append(payouts, Payout{Participant: handle, Amount: s.rewardAmount})
	}
	if err := s.creditable(payouts...); err != nil {
		return nil, s.reject("distributeRewards", caller, err)
	}

	for _, p := range payouts {
		s.participants[p.Participant].rewarded = true
		s.escrow.debit(p.Amount)
		s.credit(p.Participant, p.Amount)
		s.emit(entities.Event{Type: entities.EventRewardDistributed, User: p.Participant, Amount: p.Amount})
	}
	s.closed = true
	s.emit(entities.Event{Type: entities.EventCampaignClosed})

	s.recorder.AddDistributedRewards(len(payouts), total)
	s.recorder.SetEscrowBalance(s.escrow.balance)
	s.logger.Infow("Rewards distributed, campaign closed", "campaign", s.id, "cycle", s.cycle,
		"participants", len(payouts), "total", total)
	return payouts, nil
}

// Deposit funds the escrow, the reward pool is fed this way.
func (s *Service) Deposit(caller string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount == 0 {
		return s.reject("deposit", caller, invalidArgument("deposit amount must be positive"))
	}
	balance, err := s.escrow.creditable(amount)
	if err != nil {
		return s.reject("deposit", caller, err)
	}

	s.escrow.balance = balance
	s.emit(entities.Event{Type: entities.EventFundsDeposited, User: caller, Amount: amount})
	s.recorder.SetEscrowBalance(s.escrow.balance)
	s.logger.Infow("Funds deposited", "campaign", s.id, "from", caller, "amount", amount)
	return nil
}

// Withdraw transfers the whole escrow balance to the owner and returns the
// transferred amount.
func (s *Service) Withdraw(caller string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return 0, s.reject("withdraw", caller, err)
	}

	amount := s.escrow.balance
	if err := s.creditable(Payout{Participant: s.owner, Amount: amount}); err != nil {
		return 0, s.reject("withdraw", caller, err)
	}
	s.escrow.debit(amount)
	s.credit(s.owner, amount)

	s.emit(entities.Event{Type: entities.EventFundsWithdrawn, User: s.owner, Amount: amount})
	s.recorder.SetEscrowBalance(s.escrow.balance)
	s.logger.Infow("Funds withdrawn", "campaign", s.id, "amount", amount)
	return amount, nil
}

func (s *Service) Balance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.escrow.balance
}

// RestartCampaign opens a new cycle of a closed campaign. Participant
// records of the previous cycle are dropped, verifiers, fee and escrow are
// kept.
func (s *Service) RestartCampaign(caller string, minParticipants int, rewardAmount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return s.reject("restartCampaign", caller, err)
	}
	if !s.closed {
		return s.reject("restartCampaign", caller, ErrCampaignOpen)
	}
	if minParticipants < 0 {
		return s.reject("restartCampaign", caller, invalidArgument("minimum participants must not be negative"))
	}

	s.cycle++
	s.minParticipants = minParticipants
	s.rewardAmount = rewardAmount
	s.currentParticipants = 0
	s.closed = false
	s.participants = make(map[string]*participant)
	s.submitted = nil
	s.assignments = make(map[string]int)

	s.emit(entities.Event{Type: entities.EventCampaignRestarted, MinParticipants: minParticipants, RewardAmount: rewardAmount})
	s.logger.Infow("Campaign restarted", "campaign", s.id, "cycle", s.cycle,
		"minParticipants", minParticipants, "rewardAmount", rewardAmount)
	return nil
}

func (s *Service) Campaign() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:                  s.id,
		Cycle:               s.cycle,
		MinParticipants:     s.minParticipants,
		RewardAmount:        s.rewardAmount,
		CurrentParticipants: s.currentParticipants,
		IsClosed:            s.closed,
	}
}
