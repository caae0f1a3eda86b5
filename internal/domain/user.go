package domain

type Role string

const (
	RoleAdmin                Role = "admin"
	RoleCompanyOwner         Role = "company_owner"
	RoleCompanyBranchManager Role = "company_branch_manager"
	RoleStationOwner         Role = "station_owner"
	RoleStationBranchManager Role = "station_branch_manager"
	RoleWorker               Role = "worker"
	RoleDriver               Role = "driver"
)

// User is an account scoped to at most one company or station (and branch).
type User struct {
	ID              int32  `json:"id"`
	Name            string `json:"name"`
	Role            Role   `json:"role"`
	CompanyID       int32  `json:"company_id,omitempty"`
	CompanyBranchID int32  `json:"company_branch_id,omitempty"`
	StationID       int32  `json:"station_id,omitempty"`
	StationBranchID int32  `json:"station_branch_id,omitempty"`
}

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	UserID          int32
	Name            string
	Role            Role
	CompanyID       int32
	CompanyBranchID int32
	StationID       int32
	StationBranchID int32
}

func ActorFromUser(u *User) Actor {
	return Actor{
		UserID:          u.ID,
		Name:            u.Name,
		Role:            u.Role,
		CompanyID:       u.CompanyID,
		CompanyBranchID: u.CompanyBranchID,
		StationID:       u.StationID,
		StationBranchID: u.StationBranchID,
	}
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
