package battle

type Capability string

const (
	CapView               Capability = "view"
	CapConfigure          Capability = "configure"
	CapManageProblems     Capability = "manage-problems"
	CapManageParticipants Capability = "manage-participants"
	CapManageInvitations  Capability = "manage-invitations"
	CapStart              Capability = "start"
	CapPlay               Capability = "play"
	CapSubmitSolution     Capability = "submit-solution"
	CapViewSubmissions    Capability = "view-submissions"
)

// rolePermissions is the static role -> capability table. It is read-only
// after initialization; Permissions returns copies so callers cannot
// mutate it.
var rolePermissions = map[Role][]Capability{
	RoleOwner: {
		CapView, CapConfigure, CapManageProblems, CapManageParticipants,
		CapManageInvitations, CapStart, CapPlay, CapSubmitSolution, CapViewSubmissions,
	},
	RoleAdmin: {
		CapView, CapConfigure, CapManageProblems, CapManageParticipants,
		CapManageInvitations, CapStart, CapPlay, CapSubmitSolution, CapViewSubmissions,
	},
	RoleEditor: {
		CapView, CapConfigure, CapManageProblems, CapPlay, CapSubmitSolution, CapViewSubmissions,
	},
	RolePlayer: {
		CapView, CapPlay, CapSubmitSolution, CapViewSubmissions,
	},
}

// Permissions returns the ordered capability set for a role. Unknown roles
// get no capabilities.
func Permissions(r Role) []Capability {
	caps, ok := rolePermissions[r]
	if !ok {
		return nil
	}
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// Can reports whether the role holds the given capability.
func (r Role) Can(c Capability) bool {
	for _, have := range rolePermissions[r] {
		if have == c {
			return true
		}
	}
	return false
}
