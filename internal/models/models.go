package models

import (
	"time"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// UserStatus tracks the moderation state of an account. Buyers and admins
// are approved immediately; sellers start pending until an admin approves.
type UserStatus string

const (
	UserPending  UserStatus = "pending"
	UserApproved UserStatus = "approved"
	UserRejected UserStatus = "rejected"
	UserBanned   UserStatus = "banned"
)

func (s UserStatus) Label() string {
	switch s {
	case UserPending:
		return "รออนุมัติ"
	case UserApproved:
		return "อนุมัติแล้ว"
	case UserRejected:
		return "ถูกปฏิเสธ"
	case UserBanned:
		return "ถูกระงับ"
	}
	return string(s)
}

type User struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Role               Role       `gorm:"not null;index"           json:"role"`
	Status             UserStatus `gorm:"not null;default:approved" json:"status"`
	ProfileName        string     `gorm:"not null"                 json:"profile_name"`
	PendingProfileName string     `json:"pending_profile_name,omitempty"`
	FullName           string     `gorm:"not null"                 json:"full_name"`
	Email              string     `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash       string     `gorm:"not null"                 json:"-"`
	Address            string     `json:"address"`
	Phone              string     `json:"phone"`
	ProfileImage       string     `json:"profile_image"`
	SuspendedUntil     *time.Time `json:"suspended_until,omitempty"`
	BanRecommended     bool       `gorm:"default:false"            json:"ban_recommended"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Product is a single-unit listing: StockQuantity is 0 or 1 and once a
// checkout claims it the listing stays sold out, there is no restock path.
type Product struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"             json:"id"`
	SellerID      uint      `gorm:"index;not null"                       json:"seller_id"`
	Name          string    `gorm:"not null"                             json:"name"`
	Description   string    `json:"description"`
	Price         float64   `gorm:"not null"                             json:"price"`
	CategoryID    uint      `gorm:"index"                                json:"category_id"`
	StockQuantity uint      `gorm:"not null;default:1;check:stock_quantity >= 0 AND stock_quantity <= 1" json:"stock_quantity"`
	Image1        string    `json:"image1,omitempty"`
	Image2        string    `json:"image2,omitempty"`
	Image3        string    `json:"image3,omitempty"`
	Image4        string    `json:"image4,omitempty"`
	Image5        string    `json:"image5,omitempty"`
	Size          string    `json:"size,omitempty"`
	Chest         string    `json:"chest,omitempty"`
	Waist         string    `json:"waist,omitempty"`
	Hip           string    `json:"hip,omitempty"`
	Length        string    `json:"length,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (p *Product) Images() []string {
	all := []string{p.Image1, p.Image2, p.Image3, p.Image4, p.Image5}
	out := make([]string, 0, len(all))
	for _, img := range all {
		if img != "" {
			out = append(out, img)
		}
	}
	return out
}

func (p *Product) SetImage(pos int, path string) {
	switch pos {
	case 1:
		p.Image1 = path
	case 2:
		p.Image2 = path
	case 3:
		p.Image3 = path
	case 4:
		p.Image4 = path
	case 5:
		p.Image5 = path
	}
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderProblem   OrderStatus = "problem"
	OrderCancelled OrderStatus = "cancelled"
)

// Label returns the Thai display text used by the storefront. The stored
// value is always the English key.
func (s OrderStatus) Label() string {
	switch s {
	case OrderPending:
		return "รอดำเนินการ"
	case OrderPaid:
		return "ชำระเงินแล้ว"
	case OrderShipped:
		return "จัดส่งแล้ว"
	case OrderDelivered:
		return "จัดส่งสำเร็จ"
	case OrderProblem:
		return "มีปัญหา"
	case OrderCancelled:
		return "ยกเลิกแล้ว"
	}
	return string(s)
}

type Order struct {
	ID                 uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID            uint        `gorm:"index;not null"           json:"buyer_id"`
	SellerID           uint        `gorm:"index;not null"           json:"seller_id"`
	TotalPrice         float64     `gorm:"not null"                 json:"total_price"`
	Status             OrderStatus `gorm:"not null;default:pending" json:"status"`
	PaymentSlipURL     string      `json:"payment_slip_url"`
	CancellationReason string      `json:"cancellation_reason,omitempty"`
	IdempotencyKey     string      `gorm:"uniqueIndex;default:null" json:"-"`
	CreatedAt          time.Time   `json:"created_at"`
}

// OrderItem snapshots the price at purchase time so later listing edits
// never change what the buyer agreed to pay.
type OrderItem struct {
	ID              uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID         uint    `gorm:"index;not null"           json:"order_id"`
	ProductID       uint    `gorm:"not null"                 json:"product_id"`
	Quantity        uint    `gorm:"not null;default:1"       json:"quantity"`
	PriceAtPurchase float64 `gorm:"not null"                 json:"price_at_purchase"`
}

type ProblemStatus string

const (
	ProblemOpen          ProblemStatus = "open"
	ProblemSellerReplied ProblemStatus = "seller_replied"
	ProblemClosed        ProblemStatus = "closed"
)

func (s ProblemStatus) Label() string {
	switch s {
	case ProblemOpen:
		return "รอการตอบกลับ"
	case ProblemSellerReplied:
		return "ผู้ขายตอบกลับแล้ว"
	case ProblemClosed:
		return "ปิดเรื่องแล้ว"
	}
	return string(s)
}

type Problem struct {
	ID          uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     uint          `gorm:"index;not null"           json:"order_id"`
	ProductID   uint          `gorm:"not null"                 json:"product_id"`
	BuyerID     uint          `gorm:"index;not null"           json:"buyer_id"`
	SellerID    uint          `gorm:"index;not null"           json:"seller_id"`
	ProblemType string        `gorm:"not null"                 json:"problem_type"`
	Description string        `gorm:"not null"                 json:"description"`
	EvidenceURL string        `json:"evidence_url,omitempty"`
	Status      ProblemStatus `gorm:"not null;default:open"    json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ProblemMessage rows are append-only; the thread is read back ordered by
// sent_at ascending.
type ProblemMessage struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProblemID   uint      `gorm:"index;not null"           json:"problem_id"`
	SenderRole  Role      `gorm:"not null"                 json:"sender_role"`
	MessageText string    `gorm:"not null"                 json:"message_text"`
	SentAt      time.Time `json:"sent_at"`
}

type AppealStatus string

const (
	AppealNone     AppealStatus = ""
	AppealPending  AppealStatus = "pending"
	AppealApproved AppealStatus = "approved"
	AppealRejected AppealStatus = "rejected"
)

type Warning struct {
	ID            uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID      uint         `gorm:"index;not null"           json:"seller_id"`
	ProblemID     uint         `json:"problem_id,omitempty"`
	Message       string       `gorm:"not null"                 json:"message"`
	WarningCount  uint         `gorm:"not null"                 json:"warning_count"`
	AppealStatus  AppealStatus `gorm:"default:''"               json:"appeal_status"`
	AppealDetails string       `json:"appeal_details,omitempty"`
	RejectReason  string       `json:"reject_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// RiskLabel is the Thai severity text the seller dashboard shows for a
// recent-warning count.
func RiskLabel(count uint) string {
	switch {
	case count >= 3:
		return "เสี่ยงสูงสุด"
	case count == 2:
		return "เสี่ยงสูง"
	case count == 1:
		return "เสี่ยงต่ำ"
	}
	return "ปกติ"
}

type Setting struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `gorm:"not null"   json:"value"`
}

type Category struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null"     json:"name"`
}
