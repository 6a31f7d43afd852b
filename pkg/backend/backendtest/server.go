// Package backendtest runs an in-memory stand-in for the storefront REST
// backend. It speaks the backend's loose wire shapes (numeric ids, decimal
// strings, snake_case fields) and enforces the CSRF handshake.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	csrfCookie    = "csrftoken"
	sessionCookie = "sessionid"

	// DetailNotAuthenticated is the backend's message for anonymous access.
	DetailNotAuthenticated = "Authentication credentials were not provided."
)

type User struct {
	ID          int
	Username    string
	Password    string
	IsSuperuser bool
}

type Product struct {
	ID                  int
	Name                string
	Price               decimal.Decimal
	DiscountedPrice     decimal.Decimal
	Description         string
	DetailedDescription string
	Images              []string
	Category            string
	CustomID            string
	CreatedAt           time.Time
}

type Category struct {
	ID        int
	Name      string
	CreatedAt time.Time
}

type Comment struct {
	ID        int
	ProductID int
	UserID    int
	Text      string
	CreatedAt time.Time
}

type PurchaseItem struct {
	ProductID int
	Quantity  int
	Price     decimal.Decimal
}

type Purchase struct {
	ID                int
	UserID            int
	Items             []PurchaseItem
	Total             decimal.Decimal
	ShippingAddressID int
	CreatedAt         time.Time
}

type Address struct {
	ID          int
	UserID      int
	Address     string
	City        string
	PostalCode  string
	PhoneNumber string
	IsDefault   bool
}

type failure struct {
	status    int
	detail    string
	remaining int
}

// Server is a fake backend bound to an httptest.Server.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	nextID     int
	users      map[int]*User
	sessions   map[string]int
	csrfTokens map[string]bool
	products   []*Product
	categories []*Category
	comments   []*Comment
	purchases  []*Purchase
	addresses  []*Address
	uploads    [][]byte
	failures   map[string]*failure
	calls      map[string]int
	csrfCalls  int
}

func NewServer() *Server {
	s := &Server{
		nextID:     1,
		users:      make(map[int]*User),
		sessions:   make(map[string]int),
		csrfTokens: make(map[string]bool),
		failures:   make(map[string]*failure),
		calls:      make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL is the api root the client should be configured with.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.injectFailures)
	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf/", s.handleCSRF)
		r.Group(func(r chi.Router) {
			r.Use(s.requireCSRF)

			r.Post("/auth/login/", s.handleLogin)
			r.Post("/auth/logout/", s.handleLogout)
			r.Post("/auth/register/", s.handleRegister)

			r.Get("/products/", s.handleListProducts)
			r.Post("/products/", s.handleCreateProduct)
			r.Get("/products/{id}/", s.handleGetProduct)
			r.Put("/products/{id}/", s.handleUpdateProduct)
			r.Delete("/products/{id}/", s.handleDeleteProduct)

			r.Get("/categories/", s.handleListCategories)
			r.Post("/categories/", s.handleCreateCategory)
			r.Put("/categories/{id}/", s.handleUpdateCategory)
			r.Delete("/categories/{id}/", s.handleDeleteCategory)

			r.Get("/comments/", s.handleListComments)
			r.Post("/comments/", s.handleCreateComment)

			r.Get("/purchases/", s.handleListPurchases)
			r.Post("/purchases/", s.handleCreatePurchase)

			r.Get("/shipping-addresses/", s.handleListAddresses)
			r.Post("/shipping-addresses/", s.handleCreateAddress)
			r.Put("/shipping-addresses/{id}/", s.handleUpdateAddress)
			r.Delete("/shipping-addresses/{id}/", s.handleDeleteAddress)
			r.Post("/shipping-addresses/{id}/set-default/", s.handleSetDefaultAddress)

			r.Post("/upload-image/", s.handleUpload)
		})
	})
	return r
}

// Fail makes the next times requests to method+path answer with status and
// detail. times < 0 fails forever.
func (s *Server) Fail(method, path string, status int, detail string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = &failure{status: status, detail: detail, remaining: times}
}

// Calls reports how many requests hit method+path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// CSRFCalls reports how many CSRF handshakes were served.
func (s *Server) CSRFCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfCalls
}

func (s *Server) AddUser(username, password string, superuser bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	s.users[id] = &User{ID: id, Username: username, Password: password, IsSuperuser: superuser}
	return id
}

func (s *Server) AddProduct(p Product) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.allocID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.products = append(s.products, &p)
	return p.ID
}

func (s *Server) AddCategory(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	s.categories = append(s.categories, &Category{ID: id, Name: name, CreatedAt: time.Now().UTC()})
	return id
}

func (s *Server) AddComment(productID, userID int, text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	s.comments = append(s.comments, &Comment{ID: id, ProductID: productID, UserID: userID, Text: text, CreatedAt: time.Now().UTC()})
	return id
}

func (s *Server) AddPurchase(p Purchase) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.allocID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.purchases = append(s.purchases, &p)
	return p.ID
}

func (s *Server) Products() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	return out
}

func (s *Server) Purchases() []Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		out = append(out, *p)
	}
	return out
}

func (s *Server) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

func (s *Server) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.Method+" "+r.URL.Path]
		if ok && f.remaining != 0 {
			if f.remaining > 0 {
				f.remaining--
			}
			status, detail := f.status, f.detail
			s.mu.Unlock()
			writeDetail(w, status, detail)
			return
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(csrfCookie)
		header := r.Header.Get("X-CSRFToken")
		s.mu.Lock()
		valid := err == nil && header != "" && cookie.Value == header && s.csrfTokens[header]
		s.mu.Unlock()
		if !valid {
			writeDetail(w, http.StatusForbidden, "CSRF Failed: CSRF token missing or incorrect.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	s.csrfCalls++
	s.csrfTokens[token] = true
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: token, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{"detail": "CSRF cookie set"})
}

// currentUser returns the session's user; callers hold s.mu.
func (s *Server) currentUser(r *http.Request) *User {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	id, ok := s.sessions[cookie.Value]
	if !ok {
		return nil
	}
	return s.users[id]
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	var found *User
	for _, u := range s.users {
		if u.Username == body.Username && u.Password == body.Password {
			found = u
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	session := uuid.NewString()
	s.sessions[session] = found.ID
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: session, Path: "/"})
	writeJSON(w, http.StatusOK, userJSON(found))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"detail": "Successfully logged out."})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == body.Username {
			writeJSON(w, http.StatusBadRequest, map[string]any{"username": []string{"A user with that username already exists."}})
			return
		}
	}
	id := s.allocID()
	u := &User{ID: id, Username: body.Username, Password: body.Password}
	s.users[id] = u
	writeJSON(w, http.StatusCreated, userJSON(u))
}

func userJSON(u *User) map[string]any {
	return map[string]any{"id": u.ID, "username": u.Username, "is_superuser": u.IsSuperuser}
}

type productBody struct {
	Name                string          `json:"name"`
	Price               decimal.Decimal `json:"price"`
	DiscountedPrice     decimal.Decimal `json:"discountedPrice"`
	Description         string          `json:"description"`
	DetailedDescription string          `json:"detailedDescription"`
	Images              []string        `json:"images"`
	Category            string          `json:"category"`
	CustomID            string          `json:"customId"`
}

func productJSON(p *Product) map[string]any {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	out := map[string]any{
		"id":                   p.ID,
		"name":                 p.Name,
		"price":                p.Price.StringFixed(2),
		"discounted_price":     p.DiscountedPrice.StringFixed(2),
		"description":          p.Description,
		"detailed_description": p.DetailedDescription,
		"images":               images,
		"category":             p.Category,
		"created_at":           p.CreatedAt.Format(time.RFC3339Nano),
		"custom_id":            nil,
	}
	if p.CustomID != "" {
		out["custom_id"] = p.CustomID
	}
	return out
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	customID := r.URL.Query().Get("custom_id")
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.products))
	for _, p := range s.products {
		if customID != "" && p.CustomID != customID {
			continue
		}
		out = append(out, productJSON(p))
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) findProduct(r *http.Request) (int, *Product) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	for i, p := range s.products {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, p := s.findProduct(r)
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, productJSON(p))
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var body productBody
	if !decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"name": []string{"This field may not be blank."}})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Product{
		ID:                  s.allocID(),
		Name:                body.Name,
		Price:               body.Price,
		DiscountedPrice:     body.DiscountedPrice,
		Description:         body.Description,
		DetailedDescription: body.DetailedDescription,
		Images:              body.Images,
		Category:            body.Category,
		CustomID:            body.CustomID,
		CreatedAt:           time.Now().UTC(),
	}
	s.products = append(s.products, p)
	writeJSON(w, http.StatusCreated, productJSON(p))
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var body productBody
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, p := s.findProduct(r)
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	p.Name = body.Name
	p.Price = body.Price
	p.DiscountedPrice = body.DiscountedPrice
	p.Description = body.Description
	p.DetailedDescription = body.DetailedDescription
	p.Images = body.Images
	p.Category = body.Category
	p.CustomID = body.CustomID
	writeJSON(w, http.StatusOK, productJSON(p))
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, p := s.findProduct(r)
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	s.products = append(s.products[:i], s.products[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func categoryJSON(c *Category) map[string]any {
	return map[string]any{"id": c.ID, "name": c.Name, "created_at": c.CreatedAt.Format(time.RFC3339Nano)}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, categoryJSON(c))
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) findCategory(r *http.Request) (int, *Category) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	for i, c := range s.categories {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Category{ID: s.allocID(), Name: body.Name, CreatedAt: time.Now().UTC()}
	s.categories = append(s.categories, c)
	writeJSON(w, http.StatusCreated, categoryJSON(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, c := s.findCategory(r)
	if c == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	c.Name = body.Name
	writeJSON(w, http.StatusOK, categoryJSON(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, c := s.findCategory(r)
	if c == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	s.categories = append(s.categories[:i], s.categories[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) commentJSON(c *Comment) map[string]any {
	user := map[string]any{"id": c.UserID, "username": "unknown", "is_superuser": false}
	if u, ok := s.users[c.UserID]; ok {
		user["username"] = u.Username
		user["is_superuser"] = u.IsSuperuser
	}
	return map[string]any{
		"id":         c.ID,
		"product":    c.ProductID,
		"user":       user,
		"text":       c.Text,
		"created_at": c.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.Atoi(r.URL.Query().Get("product"))
	s.mu.Lock()
	out := make([]map[string]any, 0)
	for _, c := range s.comments {
		if c.ProductID == productID {
			out = append(out, s.commentJSON(c))
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Product string `json:"product"`
		Text    string `json:"text"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	if user == nil {
		writeDetail(w, http.StatusForbidden, DetailNotAuthenticated)
		return
	}
	productID, err := strconv.Atoi(body.Product)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"product": []string{"Invalid pk."}})
		return
	}
	c := &Comment{ID: s.allocID(), ProductID: productID, UserID: user.ID, Text: body.Text, CreatedAt: time.Now().UTC()}
	s.comments = append(s.comments, c)
	writeJSON(w, http.StatusCreated, s.commentJSON(c))
}

func (s *Server) purchaseJSON(p *Purchase) map[string]any {
	items := make([]map[string]any, 0, len(p.Items))
	for _, item := range p.Items {
		entry := map[string]any{
			"product":  item.ProductID,
			"quantity": item.Quantity,
			"price":    item.Price.StringFixed(2),
		}
		for _, prod := range s.products {
			if prod.ID == item.ProductID {
				entry["product_name"] = prod.Name
				entry["product_price"] = prod.Price.StringFixed(2)
			}
		}
		items = append(items, entry)
	}
	out := map[string]any{
		"id":         p.ID,
		"user":       p.UserID,
		"items":      items,
		"total":      p.Total.StringFixed(2),
		"created_at": p.CreatedAt.Format(time.RFC3339Nano),
	}
	if u, ok := s.users[p.UserID]; ok {
		out["username"] = u.Username
	}
	if p.ShippingAddressID != 0 {
		for _, a := range s.addresses {
			if a.ID == p.ShippingAddressID {
				out["shipping_address"] = addressJSON(a)
			}
		}
	}
	return out
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	if user == nil {
		writeDetail(w, http.StatusForbidden, DetailNotAuthenticated)
		return
	}
	out := make([]map[string]any, 0, len(s.purchases))
	for _, p := range s.purchases {
		if user.IsSuperuser || p.UserID == user.ID {
			out = append(out, s.purchaseJSON(p))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []struct {
			Product  string          `json:"product"`
			Quantity int             `json:"quantity"`
			Price    decimal.Decimal `json:"price"`
		} `json:"items"`
		Total           decimal.Decimal `json:"total"`
		ShippingAddress *string         `json:"shipping_address"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	if user == nil {
		writeDetail(w, http.StatusForbidden, DetailNotAuthenticated)
		return
	}
	p := &Purchase{ID: s.allocID(), UserID: user.ID, Total: body.Total, CreatedAt: time.Now().UTC()}
	for _, item := range body.Items {
		productID, _ := strconv.Atoi(item.Product)
		p.Items = append(p.Items, PurchaseItem{ProductID: productID, Quantity: item.Quantity, Price: item.Price})
	}
	if body.ShippingAddress != nil {
		p.ShippingAddressID, _ = strconv.Atoi(*body.ShippingAddress)
	}
	s.purchases = append(s.purchases, p)
	writeJSON(w, http.StatusCreated, s.purchaseJSON(p))
}

func addressJSON(a *Address) map[string]any {
	return map[string]any{
		"id":           a.ID,
		"address":      a.Address,
		"city":         a.City,
		"postal_code":  a.PostalCode,
		"phone_number": a.PhoneNumber,
		"is_default":   a.IsDefault,
	}
}

type addressBody struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	PhoneNumber string `json:"phone_number"`
	IsDefault   bool   `json:"is_default"`
}

func (s *Server) ownedAddress(r *http.Request, user *User) (int, *Address) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	for i, a := range s.addresses {
		if a.ID == id && a.UserID == user.ID {
			return i, a
		}
	}
	return -1, nil
}

func (s *Server) setDefault(user *User, id int) {
	for _, a := range s.addresses {
		if a.UserID == user.ID {
			a.IsDefault = a.ID == id
		}
	}
}

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	if user == nil {
		writeDetail(w, http.StatusForbidden, DetailNotAuthenticated)
		return
	}
	out := make([]map[string]any, 0)
	for _, a := range s.addresses {
		if a.UserID == user.ID {
			out = append(out, addressJSON(a))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	var body addressBody
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	if user == nil {
		writeDetail(w, http.StatusForbidden, DetailNotAuthenticated)
		return
	}
	a := &Address{
		ID:          s.allocID(),
		UserID:      user.ID,
		Address:     body.Address,
		City:        body.City,
		PostalCode:  body.PostalCode,
		PhoneNumber: body.PhoneNumber,
	}
	s.addresses = append(s.addresses, a)
	if body.IsDefault {
		s.setDefault(user, a.ID)
	}
	writeJSON(w, http.StatusCreated, addressJSON(a))
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	var body addressBody
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	if user == nil {
		writeDetail(w, http.StatusForbidden, DetailNotAuthenticated)
		return
	}
	_, a := s.ownedAddress(r, user)
	if a == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	a.Address, a.City, a.PostalCode, a.PhoneNumber = body.Address, body.City, body.PostalCode, body.PhoneNumber
	if body.IsDefault {
		s.setDefault(user, a.ID)
	}
	writeJSON(w, http.StatusOK, addressJSON(a))
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	if user == nil {
		writeDetail(w, http.StatusForbidden, DetailNotAuthenticated)
		return
	}
	i, a := s.ownedAddress(r, user)
	if a == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	s.addresses = append(s.addresses[:i], s.addresses[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	if user == nil {
		writeDetail(w, http.StatusForbidden, DetailNotAuthenticated)
		return
	}
	_, a := s.ownedAddress(r, user)
	if a == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	s.setDefault(user, a.ID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "default address set"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"image": []string{"No file was submitted."}})
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "unreadable upload")
		return
	}
	s.mu.Lock()
	s.uploads = append(s.uploads, data)
	n := len(s.uploads)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"url": fmt.Sprintf("%s/media/products/%d-%s", s.URL, n, header.Filename)})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		writeDetail(w, http.StatusBadRequest, "JSON parse error")
		return false
	}
	return true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// SortedCalls lists every recorded request key, for debugging failing tests.
func (s *Server) SortedCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.calls))
	for k, n := range s.calls {
		keys = append(keys, fmt.Sprintf("%s x%d", k, n))
	}
	sort.Strings(keys)
	return keys
}
