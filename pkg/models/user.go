package models

// AdminUsername is the account name the storefront treats as an administrator
// after login. It is a display hint only; the backend enforces authorization.
const AdminUsername = "admin"

type AdminPermissions struct {
	ManageProducts    bool   `json:"manageProducts"`
	ManageCategories  bool   `json:"manageCategories"`
	ManageGiftCodes   bool   `json:"manageGiftCodes"`
	ManageUsers       bool   `json:"manageUsers"`
	ViewPurchases     bool   `json:"viewPurchases"`
	ManageComments    bool   `json:"manageComments"`
	CustomPrefix      string `json:"customPrefix,omitempty"`
	CustomPrefixColor string `json:"customPrefixColor,omitempty"`
}

// FullAdminPermissions grants every capability.
func FullAdminPermissions() AdminPermissions {
	return AdminPermissions{
		ManageProducts:   true,
		ManageCategories: true,
		ManageGiftCodes:  true,
		ManageUsers:      true,
		ViewPurchases:    true,
		ManageComments:   true,
	}
}

// PromotedAdminPermissions is what a freshly promoted admin receives.
func PromotedAdminPermissions() AdminPermissions {
	perms := FullAdminPermissions()
	perms.ManageUsers = false
	return perms
}

// AdminPermissionsPatch is a partial permission update.
type AdminPermissionsPatch struct {
	ManageProducts    *bool   `json:"manageProducts,omitempty"`
	ManageCategories  *bool   `json:"manageCategories,omitempty"`
	ManageGiftCodes   *bool   `json:"manageGiftCodes,omitempty"`
	ManageUsers       *bool   `json:"manageUsers,omitempty"`
	ViewPurchases     *bool   `json:"viewPurchases,omitempty"`
	ManageComments    *bool   `json:"manageComments,omitempty"`
	CustomPrefix      *string `json:"customPrefix,omitempty"`
	CustomPrefixColor *string `json:"customPrefixColor,omitempty"`
}

// Apply merges the patch into perms.
func (p AdminPermissionsPatch) Apply(perms *AdminPermissions) {
	if perms == nil {
		return
	}
	if p.ManageProducts != nil {
		perms.ManageProducts = *p.ManageProducts
	}
	if p.ManageCategories != nil {
		perms.ManageCategories = *p.ManageCategories
	}
	if p.ManageGiftCodes != nil {
		perms.ManageGiftCodes = *p.ManageGiftCodes
	}
	if p.ManageUsers != nil {
		perms.ManageUsers = *p.ManageUsers
	}
	if p.ViewPurchases != nil {
		perms.ViewPurchases = *p.ViewPurchases
	}
	if p.ManageComments != nil {
		perms.ManageComments = *p.ManageComments
	}
	if p.CustomPrefix != nil {
		perms.CustomPrefix = *p.CustomPrefix
	}
	if p.CustomPrefixColor != nil {
		perms.CustomPrefixColor = *p.CustomPrefixColor
	}
}

type SecurityQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// User mirrors the storefront's user record. Password is held as plaintext,
// matching the directory the admin panel manages; the backend is the
// authority for real credentials.
type User struct {
	ID               string            `json:"id"`
	Username         string            `json:"username"`
	Password         string            `json:"-"`
	IsAdmin          bool              `json:"isAdmin"`
	AdminPermissions *AdminPermissions `json:"adminPermissions,omitempty"`
	SecurityQuestion *SecurityQuestion `json:"-"`
	IsBanned         bool              `json:"isBanned"`
	CanComment       bool              `json:"canComment"`
}

// Can reports whether the user holds an admin capability.
func (u User) Can(capability func(AdminPermissions) bool) bool {
	if !u.IsAdmin || u.AdminPermissions == nil || capability == nil {
		return false
	}
	return capability(*u.AdminPermissions)
}

// Clone deep-copies the nested pointers.
func (u User) Clone() User {
	out := u
	if u.AdminPermissions != nil {
		perms := *u.AdminPermissions
		out.AdminPermissions = &perms
	}
	if u.SecurityQuestion != nil {
		sq := *u.SecurityQuestion
		out.SecurityQuestion = &sq
	}
	return out
}

// LoginAttempt tracks consecutive failed logins for one client key.
type LoginAttempt struct {
	Key       string `json:"key"`
	Count     int    `json:"count"`
	Timestamp int64  `json:"timestamp"`
}
