// Package models defines the decoded BGP routing events produced by a stream.
package models

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// ElementKind discriminates the payload carried by an Element.
type ElementKind int

const (
	// ElemRIB is a routing table dump entry.
	ElemRIB ElementKind = iota
	// ElemAnnouncement is an incremental route announcement.
	ElemAnnouncement
	// ElemWithdrawal is an incremental route withdrawal.
	ElemWithdrawal
	// ElemPeerState is a peer session state transition.
	ElemPeerState
)

func (k ElementKind) String() string {
	switch k {
	case ElemRIB:
		return "rib"
	case ElemAnnouncement:
		return "announcement"
	case ElemWithdrawal:
		return "withdrawal"
	case ElemPeerState:
		return "peerstate"
	}
	return "unknown"
}

// Element is one fully decoded routing event. It owns all of its data and
// stays valid after the record it was pulled from has been invalidated.
//
// Which payload fields are set depends on Kind: Update for ElemRIB and
// ElemAnnouncement, Prefix for ElemWithdrawal, OldState/NewState for
// ElemPeerState.
type Element struct {
	Time    time.Time
	PeerIP  netip.Addr
	PeerASN uint32
	Kind    ElementKind

	Update   *Update
	Prefix   netip.Prefix
	OldState PeerState
	NewState PeerState
}

// RoutePrefix returns the prefix this element is about, if it has one.
// Peer state changes carry no prefix.
func (e *Element) RoutePrefix() (netip.Prefix, bool) {
	switch e.Kind {
	case ElemRIB, ElemAnnouncement:
		return e.Update.Prefix, true
	case ElemWithdrawal:
		return e.Prefix, true
	}
	return netip.Prefix{}, false
}

// Update is the route data shared by announcements and RIB entries.
// MED, LocalPref and Origin are nil when the source did not carry them.
type Update struct {
	Prefix      netip.Prefix
	NextHop     netip.Addr
	ASPath      []AsSegment
	Communities []Community
	Origin      *OriginType
	MED         *uint32
	LocalPref   *uint32
}

// OriginASN returns the AS number of the last plain hop of the path, or 0 if
// the path is empty or ends in an AS-SET.
func (u *Update) OriginASN() uint32 {
	if len(u.ASPath) == 0 {
		return 0
	}
	last := u.ASPath[len(u.ASPath)-1]
	if last.IsSet() {
		return 0
	}
	return last.ASN
}

// AsSegment is one hop of an AS path: a single AS number, or an AS-SET with
// its members kept in encoded order.
type AsSegment struct {
	ASN uint32   // single AS number, valid when Set is nil
	Set []uint32 // AS-SET members, nil for a plain hop
}

// IsSet reports whether the segment is an AS-SET.
func (s AsSegment) IsSet() bool { return s.Set != nil }

func (s AsSegment) String() string {
	if !s.IsSet() {
		return strconv.FormatUint(uint64(s.ASN), 10)
	}
	parts := make([]string, len(s.Set))
	for i, asn := range s.Set {
		parts[i] = strconv.FormatUint(uint64(asn), 10)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Community is one BGP community attribute value.
type Community struct {
	ASN   uint16
	Value uint16
}

func (c Community) String() string {
	return fmt.Sprintf("%d:%d", c.ASN, c.Value)
}

// PeerState is the BGP finite state machine state of a peer session.
type PeerState int

const (
	PeerStateIdle PeerState = iota
	PeerStateConnect
	PeerStateActive
	PeerStateOpenSent
	PeerStateOpenConfirm
	PeerStateEstablished
	PeerStateClearing
	PeerStateDeleted
	PeerStateUnknown
)

func (s PeerState) String() string {
	switch s {
	case PeerStateIdle:
		return "idle"
	case PeerStateConnect:
		return "connect"
	case PeerStateActive:
		return "active"
	case PeerStateOpenSent:
		return "opensent"
	case PeerStateOpenConfirm:
		return "openconfirm"
	case PeerStateEstablished:
		return "established"
	case PeerStateClearing:
		return "clearing"
	case PeerStateDeleted:
		return "deleted"
	}
	return "unknown"
}

// OriginType is the BGP ORIGIN path attribute.
type OriginType int

const (
	OriginIGP OriginType = iota
	OriginEGP
	OriginIncomplete
)

func (o OriginType) String() string {
	switch o {
	case OriginIGP:
		return "igp"
	case OriginEGP:
		return "egp"
	}
	return "incomplete"
}
