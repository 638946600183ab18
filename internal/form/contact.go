package form

// ContactFormID identifies the built-in lead inquiry form.
const ContactFormID = "contact/inquiry"

// DefaultServices lists the offerings shown in the service picker when
// configuration does not supply its own.
var DefaultServices = []string{
	"SEO Optimization",
	"Social Media Marketing",
	"PPC Advertising",
	"Content Marketing",
	"Web Development",
	"Brand Strategy",
	"Email Marketing",
	"Other",
}

// DefaultBudgets lists the budget ranges shown when configuration does not
// supply its own.
var DefaultBudgets = []string{
	"Under $1,000",
	"$1,000 - $5,000",
	"$5,000 - $10,000",
	"$10,000 - $25,000",
	"$25,000 - $50,000",
	"$50,000+",
}

// ContactOptions carries the configuration data the contact definition is
// built from.  Empty option lists fall back to the defaults above.
type ContactOptions struct {
	Services []string
	Budgets  []string
	Actions  []ActionDef
}

// ContactDef builds the lead inquiry definition.  The returned value is not
// registered; callers pass it to Register.
func ContactDef(opts ContactOptions) *FormDef {
	services := opts.Services
	if len(services) == 0 {
		services = DefaultServices
	}
	budgets := opts.Budgets
	if len(budgets) == 0 {
		budgets = DefaultBudgets
	}

	return &FormDef{
		ID:    ContactFormID,
		Title: "Send us a message",
		Fields: []FieldDef{
			{Name: "firstName", Label: "First Name", Type: "text", Placeholder: "John",
				Required: true, MinLength: 2, ErrorMsg: "First name must be at least 2 characters"},
			{Name: "lastName", Label: "Last Name", Type: "text", Placeholder: "Doe",
				Required: true, MinLength: 2, ErrorMsg: "Last name must be at least 2 characters"},
			{Name: "email", Label: "Email Address", Type: "email", Placeholder: "john@example.com",
				Required: true, ErrorMsg: "Please enter a valid email address"},
			{Name: "phone", Label: "Phone Number", Type: "tel", Placeholder: "+1 (234) 567-8900",
				Required: true, MinLength: 10, ErrorMsg: "Please enter a valid phone number"},
			{Name: "company", Label: "Company Name", Type: "text", Placeholder: "Your Company"},
			{Name: "service", Label: "Service Interested In", Type: "select", Placeholder: "Select a service",
				Required: true, Options: append([]string(nil), services...), ErrorMsg: "Please select a service"},
			{Name: "budget", Label: "Budget Range", Type: "select", Placeholder: "Select budget range",
				Required: true, Options: append([]string(nil), budgets...), ErrorMsg: "Please select a budget range"},
			{Name: "message", Label: "Project Details", Type: "textarea",
				Placeholder: "Tell us about your project, goals, and any specific requirements...",
				Required:    true, MinLength: 10, ErrorMsg: "Message must be at least 10 characters"},
		},
		Actions: opts.Actions,
	}
}
