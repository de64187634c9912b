package handler

import "github.com/hitoshi/uniswipe/internal/model"

// universityResponse は大学1件のレスポンス形式。
type universityResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	PhotoURL string   `json:"photo_url"`
	City     string   `json:"city"`
	State    string   `json:"state"`
	Country  string   `json:"country"`
}

type universityListResponse struct {
	Universities []universityResponse `json:"universities"`
}

type ratingResponse struct {
	Vibe       int `json:"vibe"`
	Academics  int `json:"academics"`
	Location   int `json:"location"`
	GutFeeling int `json:"gut_feeling"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// meResponse はGET /auth/meのレスポンス。
type meResponse struct {
	userResponse
	AuthState string `json:"auth_state"`
}

func toUniversityResponse(u *model.University) universityResponse {
	tags := u.Tags
	if tags == nil {
		tags = []string{}
	}
	return universityResponse{
		ID:       u.ID,
		Name:     u.Name,
		Tags:     tags,
		PhotoURL: u.PhotoURL,
		City:     u.City,
		State:    u.State,
		Country:  u.Country,
	}
}

// toUniversityList はnil要素を除いたレスポンスに変換する。
// 空のカタログでもJSONでは [] を返す。
func toUniversityList(universities []*model.University) universityListResponse {
	out := make([]universityResponse, 0, len(universities))
	for _, u := range universities {
		if u == nil {
			continue
		}
		out = append(out, toUniversityResponse(u))
	}
	return universityListResponse{Universities: out}
}

func toRatingResponse(r model.Rating) ratingResponse {
	return ratingResponse{
		Vibe:       r.Vibe,
		Academics:  r.Academics,
		Location:   r.Location,
		GutFeeling: r.GutFeeling,
	}
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}
