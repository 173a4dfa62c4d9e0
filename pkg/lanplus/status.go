package lanplus

import "github.com/iniwex5/lanplus-go/pkg/ipmi"

type SessionSnapshot struct {
	State     SessionState
	Active    bool
	ConsoleID uint32
	BMCID     uint32

	Requested    ipmi.CipherSuite
	Suite        ipmi.CipherSuite
	Privilege    ipmi.PrivilegeLevel
	MaxPrivilege ipmi.PrivilegeLevel
	BMCGUID      ipmi.GUID

	Sequence uint32
	Pending  int

	SOLActive   bool
	SOLInstance uint8
}

func (s *Session) Snapshot() SessionSnapshot {
	out := SessionSnapshot{
		State:        s.state,
		Active:       s.state == StateActive,
		ConsoleID:    s.ConsoleID,
		BMCID:        s.BMCID,
		Requested:    s.requested,
		Suite:        s.suite,
		MaxPrivilege: s.maxPriv,
		BMCGUID:      s.bmcGUID,
		Sequence:     s.sequence,
		Pending:      s.tracker.Len(),
		SOLActive:    s.sol.active,
		SOLInstance:  s.sol.instance,
	}
	if out.Active {
		out.Privilege = s.cfg.Privilege
	}
	return out
}
