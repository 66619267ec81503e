package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"eventTickets/internal/model"
)

type sampleEvent struct {
	title          string
	description    string
	daysAhead      int
	clock          string
	location       string
	address        string
	category       string
	image          string
	price          int64
	capacity       int
	organizerName  string
	organizerEmail string
}

var sampleEvents = []sampleEvent{
	{
		title:          "Tech Conference",
		description:    "Keynotes from industry leaders, hands-on workshops and networking.",
		daysAhead:      30,
		clock:          "09:00",
		location:       "San Francisco Convention Center",
		address:        "747 Howard St, San Francisco, CA 94103",
		category:       "Technology",
		image:          "https://images.pexels.com/photos/1181676/pexels-photo-1181676.jpeg?auto=compress&cs=tinysrgb&w=800",
		price:          299,
		capacity:       500,
		organizerName:  "Tech Events Inc.",
		organizerEmail: "events@techevents.com",
	},
	{
		title:          "Music Festival",
		description:    "A weekend of music across multiple stages, food trucks and art installations.",
		daysAhead:      60,
		clock:          "14:00",
		location:       "Central Park",
		address:        "New York, NY 10024",
		category:       "Music",
		image:          "https://images.pexels.com/photos/1190298/pexels-photo-1190298.jpeg?auto=compress&cs=tinysrgb&w=800",
		price:          89,
		capacity:       2000,
		organizerName:  "Music Fest Organizers",
		organizerEmail: "info@musicfest.com",
	},
	{
		title:          "Startup Networking Event",
		description:    "Meet entrepreneurs, investors and industry professionals.",
		daysAhead:      14,
		clock:          "18:00",
		location:       "Innovation Hub",
		address:        "123 Innovation Dr, Austin, TX 78701",
		category:       "Business",
		image:          "https://images.pexels.com/photos/1181533/pexels-photo-1181533.jpeg?auto=compress&cs=tinysrgb&w=800",
		price:          0,
		capacity:       150,
		organizerName:  "Austin Startup Community",
		organizerEmail: "hello@austinstartups.com",
	},
	{
		title:          "Food & Wine Festival",
		description:    "Gourmet food and wines from local restaurants, live cooking demonstrations and tastings.",
		daysAhead:      45,
		clock:          "12:00",
		location:       "Waterfront Plaza",
		address:        "456 Harbor Blvd, Seattle, WA 98101",
		category:       "Food",
		image:          "https://images.pexels.com/photos/1267320/pexels-photo-1267320.jpeg?auto=compress&cs=tinysrgb&w=800",
		price:          65,
		capacity:       300,
		organizerName:  "Culinary Events LLC",
		organizerEmail: "contact@culinaryevents.com",
	},
	{
		title:          "Art Gallery Opening",
		description:    "Opening night of a contemporary exhibition by emerging local artists.",
		daysAhead:      21,
		clock:          "19:00",
		location:       "Modern Art Gallery",
		address:        "789 Art St, Chicago, IL 60614",
		category:       "Arts",
		image:          "https://images.pexels.com/photos/1652340/pexels-photo-1652340.jpeg?auto=compress&cs=tinysrgb&w=800",
		price:          25,
		capacity:       100,
		organizerName:  "Modern Art Gallery",
		organizerEmail: "gallery@modernart.example",
	},
}

// SeedSampleEvents fills an empty catalog with demo events dated relative to
// now. A catalog that already has events is left alone. It returns how many
// events were created.
func SeedSampleEvents(ctx context.Context, r Repository, now time.Time) (int, error) {
	existing, err := r.GetAllEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to check catalog: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	now = now.UTC()
	for i, s := range sampleEvents {
		e := &model.Event{
			ID:               uuid.NewString(),
			Title:            s.title,
			Description:      s.description,
			Date:             now.AddDate(0, 0, s.daysAhead).Format(time.DateOnly),
			Time:             s.clock,
			Location:         s.location,
			Address:          s.address,
			Category:         s.category,
			Image:            s.image,
			Price:            decimal.NewFromInt(s.price),
			Capacity:         s.capacity,
			AvailableTickets: s.capacity,
			Organizer: model.UserRef{
				ID:    uuid.NewString(),
				Name:  s.organizerName,
				Email: s.organizerEmail,
			},
			// Distinct timestamps keep the listing order stable.
			CreatedAt: now.Add(-time.Duration(i) * time.Second),
			UpdatedAt: now,
		}
		if err := r.CreateEvent(ctx, e); err != nil {
			return i, fmt.Errorf("failed to seed %q: %w", s.title, err)
		}
	}
	return len(sampleEvents), nil
}
