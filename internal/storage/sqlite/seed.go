package sqlite

import (
	"context"

	"triagebot/internal/domain"
)

// sampleTickets covers every category the classifier is expected to
// produce, with a realistic status spread.
var sampleTickets = []domain.Ticket{
	{Title: "App crashes on profile page", Description: "Every time I try to access my profile page, the app crashes and I have to restart. This started happening after the last update. Please fix this asap.", Status: domain.TicketOpen, Tags: "bug,crash,critical"},
	{Title: "Search feature returns no results", Description: "I searched for my tickets but the search returns no results even though I know they exist. The search seems to be completely broken.", Status: domain.TicketOpen, Tags: "bug,search"},
	{Title: "Export functionality not working", Description: "When I try to export my data as CSV, nothing happens. I clicked the export button multiple times but no file was downloaded. The feature seems to be broken.", Status: domain.TicketInProgress, Tags: "bug,export"},
	{Title: "Login page keeps redirecting", Description: "After entering credentials on the login page, it keeps redirecting back to the login page instead of logging me in. I'm sure my credentials are correct.", Status: domain.TicketInProgress, Tags: "bug,authentication"},
	{Title: "PDF reports not generating", Description: "When I try to generate a PDF report, I get an error message. The download never happens and I get no useful error details.", Status: domain.TicketResolved, Tags: "bug,pdf,reports"},
	{Title: "Payment method declined", Description: "My credit card keeps getting declined when I try to checkout. I have plenty of balance and it works fine on other websites. This is the third time this week. Very frustrating!", Status: domain.TicketOpen, Tags: "billing,payment"},
	{Title: "Wrong billing amount charged", Description: "I was charged $150 instead of $50 for my subscription this month. This is the second time this has happened. I need an immediate refund and explanation.", Status: domain.TicketOpen, Tags: "billing,refund,critical"},
	{Title: "Need refund for duplicate charge", Description: "I was charged twice for the same transaction last month. Please process a refund for the duplicate charge ($89.99).", Status: domain.TicketResolved, Tags: "billing,refund"},
	{Title: "Invoice not showing correct itemization", Description: "My invoice shows different items than what I actually purchased. The total seems inflated. Can you clarify what I'm being charged for?", Status: domain.TicketInProgress, Tags: "billing,invoice"},
	{Title: "Subscription renewal failed", Description: "My subscription was supposed to renew yesterday but I got an error. My account is now inactive. I need to renew immediately.", Status: domain.TicketResolved, Tags: "billing,subscription"},
	{Title: "Feature request: Dark mode", Description: "Would love to see a dark mode option in the app. It would be much easier on the eyes during night time usage. Many other apps have this feature.", Status: domain.TicketOpen, Tags: "feature_request,ui"},
	{Title: "Add bulk export capability", Description: "It would be great if I could export multiple tickets at once instead of one by one. This would save a lot of time.", Status: domain.TicketOpen, Tags: "feature_request,export"},
	{Title: "Need advanced filtering options", Description: "The current filtering is too basic. I need to filter by multiple criteria at the same time, like status AND priority AND date range.", Status: domain.TicketOpen, Tags: "feature_request,filtering"},
	{Title: "Mobile app development request", Description: "Your web app is great, but I spend most time on mobile. Would love a native iOS and Android app.", Status: domain.TicketInProgress, Tags: "feature_request,mobile"},
	{Title: "API documentation request", Description: "Please provide comprehensive API documentation. I want to build integrations with your platform.", Status: domain.TicketResolved, Tags: "feature_request,api"},
	{Title: "Cannot login to account", Description: "I've been trying to log in to my account for the past hour but keep getting 'Invalid credentials' error. I'm sure my password is correct. I've tried resetting it but still no luck. Can you help me urgently?", Status: domain.TicketOpen, Tags: "authentication,urgent"},
	{Title: "Slow page loading times", Description: "The dashboard page takes forever to load. I'm on a high-speed internet connection but it still takes 10+ seconds. Performance is terrible.", Status: domain.TicketOpen, Tags: "performance"},
	{Title: "Two-factor authentication not working", Description: "I enabled 2FA but now I can't log in. The app doesn't recognize my authenticator codes. I'm locked out of my account.", Status: domain.TicketInProgress, Tags: "authentication,urgent"},
	{Title: "Integration with Slack failing", Description: "Our Slack integration stopped working. Notifications are no longer being sent to our Slack channel. Did something change on your end?", Status: domain.TicketResolved, Tags: "integration,notifications"},
	{Title: "Database connection timeout", Description: "Getting 'database connection timeout' errors intermittently throughout the day. This is causing our application to fail.", Status: domain.TicketOpen, Tags: "infrastructure,critical"},
}

// SeedTickets inserts the sample ticket set if the tickets table is empty.
// Returns the number of tickets inserted (0 when the table already has data).
func SeedTickets(ctx context.Context, store *TicketStore) (int, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	for _, t := range sampleTickets {
		if _, err := store.Insert(ctx, t); err != nil {
			return 0, err
		}
	}
	return len(sampleTickets), nil
}
