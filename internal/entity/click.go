package entity

import (
	"net/netip"
	"time"
)

// RecentClicksLimit is the number of clicks returned with the analytics of a URL.
const RecentClicksLimit = 10

const (
	unknownIPAddress = "0.0.0.0"
	unknownUserAgent = "Unknown"
)

// Click is a single successful redirect of a short URL.
type Click struct {
	ID        int64     // ID is the unique identifier of the click in the database.
	URLID     int64     // URLID references the URL the click belongs to.
	IPAddress string    // IPAddress is the anonymized address of the visitor.
	UserAgent string    // UserAgent is the User-Agent header of the visitor.
	Referrer  *string   // Referrer is the Referer header of the visitor, if any.
	ClickedAt time.Time // ClickedAt is the moment the redirect was served.
}

// Visitor is the request information attached to a click.
type Visitor struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

// NewClick builds the click of a visitor on the URL with the given id.
// The address is anonymized before it leaves this function.
func NewClick(urlID int64, v Visitor, clickedAt time.Time) Click {
	c := Click{
		URLID:     urlID,
		IPAddress: AnonymizeIP(v.IPAddress),
		UserAgent: v.UserAgent,
		ClickedAt: clickedAt,
	}

	if c.UserAgent == "" {
		c.UserAgent = unknownUserAgent
	}
	if v.Referrer != "" {
		referrer := v.Referrer
		c.Referrer = &referrer
	}

	return c
}

// Analytics is the aggregated click information of a URL.
type Analytics struct {
	URL          *URL
	TotalClicks  int64
	RecentClicks []Click
}

// AnonymizeIP zeroes the low-order part of an address: the last octet of an
// IPv4 address and the interface identifier (last 64 bits) of an IPv6 address.
// Addresses that cannot be parsed are replaced with 0.0.0.0.
func AnonymizeIP(addr string) string {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		ap, err := netip.ParseAddrPort(addr)
		if err != nil {
			return unknownIPAddress
		}
		ip = ap.Addr()
	}

	ip = ip.Unmap().WithZone("")

	bits := 24
	if ip.Is6() {
		bits = 64
	}

	prefix, err := ip.Prefix(bits)
	if err != nil {
		return unknownIPAddress
	}

	return prefix.Addr().String()
}
