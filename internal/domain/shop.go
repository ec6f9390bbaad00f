package domain

import (
	"regexp"
	"strconv"
	"strings"
)

const fallbackEmail = "unknown@example.com"

var shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

// ValidShopDomain accepts only {name}.myshopify.com hosts.
func ValidShopDomain(shop string) bool {
	return shopDomainPattern.MatchString(shop)
}

// ShopInfo is the subset of the Admin API shop resource the app relies on.
type ShopInfo struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	ShopOwner       string `json:"shop_owner"`
	Email           string `json:"email"`
	CustomerEmail   string `json:"customer_email"`
	Phone           string `json:"phone"`
	Domain          string `json:"domain"`
	MyshopifyDomain string `json:"myshopify_domain"`
}

// StoreHash is the shop id as the store API knows it.
func (s ShopInfo) StoreHash() string {
	if s.ID == 0 {
		return ""
	}
	return strconv.FormatUint(s.ID, 10)
}

// OwnerNames splits the shop owner on the first space.
func (s ShopInfo) OwnerNames() (first, last string) {
	first, last, _ = strings.Cut(strings.TrimSpace(s.ShopOwner), " ")
	return first, strings.TrimSpace(last)
}

// ContactEmail falls back from the shop email to the customer email.
func (s ShopInfo) ContactEmail() string {
	if s.Email != "" {
		return s.Email
	}
	if s.CustomerEmail != "" {
		return s.CustomerEmail
	}
	return fallbackEmail
}

// MerchantRegistration is what the store API needs to onboard a shop.
type MerchantRegistration struct {
	StoreHash string
	FirstName string
	LastName  string
	Phone     string
	StoreURL  string
	StoreName string
	Email     string
}

// Registration builds the merchant registration for this shop.
func (s ShopInfo) Registration() MerchantRegistration {
	first, last := s.OwnerNames()
	domain := s.Domain
	if domain == "" {
		domain = s.MyshopifyDomain
	}
	return MerchantRegistration{
		StoreHash: s.StoreHash(),
		FirstName: first,
		LastName:  last,
		Phone:     s.Phone,
		StoreURL:  "https://" + domain,
		StoreName: s.Name,
		Email:     s.ContactEmail(),
	}
}

// Settings are the storefront customizer options for one shop.
type Settings struct {
	EnableShare        bool   `json:"enableShare"`
	DesignerButtonName string `json:"designerButtonName"`
	DesignerButton     string `json:"designerButton"`
	AddToCartForm      string `json:"addtocartForm,omitempty"`
	CSSCode            string `json:"cssCode"`
}

// DefaultSettings is served whenever the store API cannot provide settings.
func DefaultSettings() Settings {
	return Settings{
		EnableShare:        false,
		DesignerButtonName: "Customize",
		DesignerButton:     "",
		CSSCode:            ".example-css-custom{color:red;}",
	}
}

// OrderListQuery pages through orders kept by the store API.
type OrderListQuery struct {
	Page       int
	Limit      int
	SearchTerm string
}

// Normalize applies the dashboard defaults.
func (q OrderListQuery) Normalize() OrderListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 15
	}
	return q
}
