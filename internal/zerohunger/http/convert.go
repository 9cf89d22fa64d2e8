package http

import (
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
)

func toUser(u domain.User) zhclient.User {
	return zhclient.User{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Role:       u.Role.String(),
		Gender:     u.Gender,
		Address:    u.Address,
		Phone:      u.Phone,
		MFAEnabled: u.HasSecondFactor(),
		CreatedAt:  u.CreatedAt,
	}
}

func toSummary(s *domain.UserSummary) *zhclient.UserSummary {
	if s == nil {
		return nil
	}
	return &zhclient.UserSummary{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Phone:     s.Phone,
		Address:   s.Address,
		Role:      s.Role.String(),
	}
}

func toDonation(d domain.Donation) zhclient.Donation {
	return zhclient.Donation{
		ID:               d.ID,
		ParentID:         d.ParentID,
		FoodType:         d.FoodType,
		Quantity:         d.Quantity,
		OriginalQuantity: d.OriginalQuantity,
		CookingTime:      d.CookingTime,
		Address:          d.Address,
		Phone:            d.Phone,
		DonorToAdminMsg:  d.DonorToAdminMsg,
		AdminToAgentMsg:  d.AdminToAgentMsg,
		Status:           string(d.Status),
		CollectionTime:   d.CollectionTime,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func toDonationView(v domain.DonationView) zhclient.Donation {
	out := toDonation(v.Donation)
	out.Donor = toSummary(v.Donor)
	out.Agent = toSummary(v.Agent)
	out.Collector = toSummary(v.Collector)
	return out
}

func toDonationViews(vs []domain.DonationView) []zhclient.Donation {
	out := make([]zhclient.Donation, 0, len(vs))
	for _, v := range vs {
		out = append(out, toDonationView(v))
	}
	return out
}

func toLocation(l domain.AgentLocation) zhclient.Location {
	return zhclient.Location{
		AgentID:   l.AgentID,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		UpdatedAt: l.UpdatedAt,
	}
}

func toLocations(ls []domain.AgentLocation) []zhclient.Location {
	out := make([]zhclient.Location, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLocation(l))
	}
	return out
}

func toFeedback(f domain.Feedback) zhclient.Feedback {
	return zhclient.Feedback{
		ID:        f.ID,
		ParentID:  f.ParentID,
		Message:   f.Message,
		Reply:     f.Reply,
		Status:    string(f.Status),
		RepliedAt: f.RepliedAt,
		CreatedAt: f.CreatedAt,
	}
}

func toFeedbackEntries(es []domain.FeedbackEntry) []zhclient.Feedback {
	out := make([]zhclient.Feedback, 0, len(es))
	for _, e := range es {
		f := toFeedback(e.Feedback)
		f.Sender = toSummary(e.Sender)
		f.Receiver = toSummary(e.Receiver)
		for _, rep := range e.Replies {
			f.Replies = append(f.Replies, toFeedback(rep))
		}
		out = append(out, f)
	}
	return out
}

func toDashboard(d service.Dashboard) zhclient.Dashboard {
	out := zhclient.Dashboard{
		Role:      d.Role.String(),
		Assigned:  d.Assigned,
		Collected: d.Collected,
		Available: d.Available,
	}
	if d.Users != nil {
		out.Users = make(map[string]int64, len(d.Users))
		for role, n := range d.Users {
			out.Users[role.String()] = n
		}
	}
	if d.Donations != nil {
		out.Donations = make(map[string]int64, len(d.Donations))
		for status, n := range d.Donations {
			out.Donations[string(status)] = n
		}
	}
	return out
}

// stateOf tells the client which page follows the current session state.
func stateOf(sess domain.Session, role domain.Role) zhclient.SessionState {
	out := zhclient.SessionState{
		State:          string(sess.State),
		FailedAttempts: sess.FailedAttempts,
	}
	switch sess.State {
	case domain.SessionSetupSecondFactor:
		out.Next = "/2fa/generate"
	case domain.SessionPendingSecondFactor:
		out.Next = "/2fa/verify"
	case domain.SessionVerified:
		out.Next = role.Home()
	case domain.SessionNotStarted:
		out.Next = "/auth/login"
	}
	return out
}
