package contract

import "strings"

// Kind names a ledger entry point.
type Kind string

const (
	KindRegisterTrack Kind = "register_track"
	KindChangeTrack   Kind = "change_track"
	KindRemoveTrack   Kind = "remove_track"
)

// SplitMode selects how the fee of a track change is distributed.
type SplitMode string

const (
	// SplitRegistry requires the title to be registered and pays half the fee to its artist.
	SplitRegistry SplitMode = "registry"
	// SplitOwner skips the registry and pays the whole fee to the owner.
	SplitOwner SplitMode = "owner"
)

// DuplicatePolicy decides whether a title may be registered more than once.
type DuplicatePolicy string

const (
	DuplicatesFirstWins DuplicatePolicy = "first_wins"
	DuplicatesReject    DuplicatePolicy = "reject"
)

// Transfer reasons.
const (
	ReasonArtistShare = "artist_share"
	ReasonOwnerShare  = "owner_share"
	ReasonRefund      = "refund"
)

// Call is one invocation of an entry point. Only the fields used by Kind matter.
type Call struct {
	Kind    Kind    `json:"kind"`
	Caller  Address `json:"caller"`
	Title   string  `json:"title,omitempty"`
	Artist  Address `json:"artist,omitempty"`
	Payment uint64  `json:"payment,omitempty"`
	Index   uint64  `json:"index,omitempty"`
}

// Transfer is a coin movement produced by a successful track change.
type Transfer struct {
	To     Address `json:"to"`
	Amount uint64  `json:"amount"`
	Reason string  `json:"reason"`
}

// TrackChanged is emitted for every committed track change.
type TrackChanged struct {
	Title  string  `json:"title"`
	Artist Address `json:"artist,omitempty"`
	Payer  Address `json:"payer"`
	Fee    uint64  `json:"fee"`
}

// Receipt describes the effects of a committed call.
type Receipt struct {
	Kind      Kind          `json:"kind"`
	Version   uint64        `json:"version"`
	Transfers []Transfer    `json:"transfers,omitempty"`
	Event     *TrackChanged `json:"event,omitempty"`
	Added     *TrackEntry   `json:"added,omitempty"`
	Removed   *TrackEntry   `json:"removed,omitempty"`
}

// Rules are the per-deployment switches of the contract.
type Rules struct {
	SplitMode       SplitMode
	DuplicateTitles DuplicatePolicy
}

// DefaultRules is the registry-aware revision with first-registration-wins titles.
var DefaultRules = Rules{SplitMode: SplitRegistry, DuplicateTitles: DuplicatesFirstWins}

type Contract struct {
	rules Rules
}

func New(rules Rules) *Contract {
	if rules.SplitMode == "" {
		rules.SplitMode = SplitRegistry
	}
	if rules.DuplicateTitles == "" {
		rules.DuplicateTitles = DuplicatesFirstWins
	}
	return &Contract{rules: rules}
}

// Apply executes call against s. On failure the returned state is s itself and
// no receipt is produced; s is never modified in place.
func (c *Contract) Apply(s State, call Call) (State, Receipt, error) {
	switch call.Kind {
	case KindRegisterTrack:
		return c.registerTrack(s, call)
	case KindChangeTrack:
		return c.changeTrack(s, call)
	case KindRemoveTrack:
		return c.removeTrack(s, call)
	default:
		return s, Receipt{}, ErrUnknownCall
	}
}

func (c *Contract) registerTrack(s State, call Call) (State, Receipt, error) {
	title := strings.TrimSpace(call.Title)
	if title == "" {
		return s, Receipt{}, ErrEmptyTitle
	}
	if c.rules.DuplicateTitles == DuplicatesReject {
		if _, exists := s.Lookup(title); exists {
			return s, Receipt{}, ErrDuplicateTitle
		}
	}

	artist := call.Artist
	if artist == "" {
		artist = call.Caller
	}
	entry := TrackEntry{Title: title, Artist: artist}

	next := s.Clone()
	next.Registry = append(next.Registry, entry)
	next.Version++

	return next, Receipt{Kind: KindRegisterTrack, Version: next.Version, Added: &entry}, nil
}

func (c *Contract) changeTrack(s State, call Call) (State, Receipt, error) {
	if call.Payment < s.Fee {
		return s, Receipt{}, ErrInsufficientPayment
	}

	var transfers []Transfer
	event := &TrackChanged{Title: call.Title, Payer: call.Caller, Fee: s.Fee}

	switch c.rules.SplitMode {
	case SplitOwner:
		transfers = append(transfers, Transfer{To: s.Owner, Amount: s.Fee, Reason: ReasonOwnerShare})
	default:
		entry, ok := s.Lookup(call.Title)
		if !ok {
			return s, Receipt{}, ErrTrackNotFound
		}
		artistShare := s.Fee / 2
		transfers = append(transfers,
			Transfer{To: entry.Artist, Amount: artistShare, Reason: ReasonArtistShare},
			Transfer{To: s.Owner, Amount: s.Fee - artistShare, Reason: ReasonOwnerShare},
		)
		event.Artist = entry.Artist
	}

	if refund := call.Payment - s.Fee; refund > 0 {
		transfers = append(transfers, Transfer{To: call.Caller, Amount: refund, Reason: ReasonRefund})
	}

	next := s.Clone()
	next.CurrentTrack = call.Title
	next.LastPayer = call.Caller
	next.Version++

	return next, Receipt{
		Kind:      KindChangeTrack,
		Version:   next.Version,
		Transfers: transfers,
		Event:     event,
	}, nil
}

func (c *Contract) removeTrack(s State, call Call) (State, Receipt, error) {
	if call.Caller != s.Owner {
		return s, Receipt{}, ErrNotAuthorized
	}
	if call.Index >= uint64(len(s.Registry)) {
		return s, Receipt{}, ErrIndexOutOfBounds
	}

	next := s.Clone()
	removed := next.Registry[call.Index]
	next.Registry = append(next.Registry[:call.Index], next.Registry[call.Index+1:]...)
	next.Version++

	return next, Receipt{Kind: KindRemoveTrack, Version: next.Version, Removed: &removed}, nil
}

// Credits sums the transfers of a receipt per recipient.
func (r Receipt) Credits() map[Address]uint64 {
	out := make(map[Address]uint64, len(r.Transfers))
	for _, t := range r.Transfers {
		out[t.To] += t.Amount
	}
	return out
}
