package onboarding

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/transport"
)

const maxInterests = 3

// Reply is one outbound message a transition emits.
type Reply struct {
	Text    string
	Buttons []transport.Button
}

// Effects is what a transition produced besides the subscriber mutation:
// outbound replies, whether the subscriber row changed and must be persisted,
// and whether the trial digest should be generated and sent.
type Effects struct {
	Replies  []Reply
	Changed  bool
	SendDemo bool
}

func (e *Effects) reply(text string, buttons ...transport.Button) {
	e.Replies = append(e.Replies, Reply{Text: text, Buttons: buttons})
}

var startKeywords = []string{
	"hi", "hello", "hey", "start", "begin", "menu", "tindim", "try", "demo",
}

var interestMenu = []struct {
	Category models.Category
	Label    string
}{
	{models.CategoryTech, "💻 Tech"},
	{models.CategoryFinance, "📈 Finance"},
	{models.CategoryCrypto, "₿ Crypto"},
	{models.CategoryPolitics, "🏛️ Politics"},
	{models.CategorySports, "⚽ Sports"},
	{models.CategoryHealth, "🏥 Health"},
	{models.CategoryBusiness, "📊 Business"},
	{models.CategoryEntertainment, "🎬 Entertainment"},
	{models.CategoryScience, "🔬 Science"},
	{models.CategoryAgro, "🌾 Agro"},
	{models.CategoryWorld, "🌍 World"},
}

// Transition is the state machine proper: given the subscriber's current
// state and one normalized inbound input, it mutates the subscriber in memory
// and returns the effects. It performs no I/O; persistence and delivery
// belong to the Machine.
func Transition(sub *models.Subscriber, input string) Effects {
	input = strings.ToLower(strings.TrimSpace(input))

	if input == "reset" {
		return resetLead(sub)
	}
	if isStartKeyword(input) && sub.OnboardingState != models.StateActive {
		return beginOnboarding(sub)
	}

	switch sub.OnboardingState {
	case models.StateNewLead:
		return beginOnboarding(sub)
	case models.StateSelectingInterests:
		return handleInterestSelection(sub, input)
	case models.StateSelectingProfile:
		return handleProfileSelection(sub, input)
	case models.StateSelectingTone:
		return handleToneSelection(sub, input)
	case models.StateDemoSent:
		return handlePostDemo(sub, input)
	case models.StateAwaitingPayment:
		return handleAwaitingPayment(sub, input)
	case models.StateActive:
		return handleActive(sub, input)
	case models.StateConfiguring:
		return handleConfiguring(sub, input)
	case models.StateConfigSchedule:
		return handleConfigSchedule(sub, input)
	case models.StateConfigInterests:
		return handleConfigInterests(sub, input)
	}

	// Unknown persisted state. Leave it untouched and answer safely.
	var fx Effects
	fx.reply("Something went wrong on my side. Send *hi* to start over.")
	return fx
}

func isStartKeyword(input string) bool {
	for _, kw := range startKeywords {
		if strings.Contains(input, kw) {
			return true
		}
	}
	return false
}

func resetLead(sub *models.Subscriber) Effects {
	sub.OnboardingState = models.StateNewLead
	sub.Onboarding = models.OnboardingPayload{}
	sub.Interests = nil
	sub.Active = false
	sub.Plan = models.PlanBase

	var fx Effects
	fx.Changed = true
	fx.reply("🔄 State reset. Send *hi* to start over.")
	return fx
}

func beginOnboarding(sub *models.Subscriber) Effects {
	sub.OnboardingState = models.StateSelectingInterests
	sub.Onboarding = models.OnboardingPayload{SelectedInterests: []models.Category{}}

	var fx Effects
	fx.Changed = true
	fx.reply("👋 *Hi! I'm Tindim, your AI journalist.*\n\n" +
		"Every day I'll send you a personalized digest of the news that matters to you, right here in chat.\n\n" +
		"To get started, *what do you want to read about?*\n" +
		"_(Pick up to 3 topics)_")
	fx.reply("Pick a topic:", interestButtons(nil, 0)...)
	return fx
}

func handleInterestSelection(sub *models.Subscriber, input string) Effects {
	var fx Effects
	selected := sub.Onboarding.SelectedInterests

	if category := matchInterest(input); category != "" {
		if containsCategory(selected, category) {
			fx.reply("You already picked that topic. Choose another one!")
			fx.reply("Pick a topic:", interestButtons(selected, 0)...)
			return fx
		}
		selected = append(selected, category)
		sub.Onboarding.SelectedInterests = selected
		fx.Changed = true

		if len(selected) >= maxInterests {
			advanceToProfile(sub, &fx)
			return fx
		}
		fx.reply(fmt.Sprintf("✅ *%s* added! (%d/%d)\n\nWant more topics, or shall I build your digest?",
			interestLabel(category), len(selected), maxInterests))
		fx.reply("Add another topic or build your digest:", interestButtonsWithDone(selected)...)
		return fx
	}

	switch input {
	case "done", "ready", "continue", "next", "build", "generate":
		if len(selected) == 0 {
			fx.reply("Please pick at least 1 topic to continue.")
			fx.reply("Pick a topic:", interestButtons(nil, 0)...)
			return fx
		}
		fx.Changed = true
		advanceToProfile(sub, &fx)
		return fx
	}

	if page, ok := morePage(input); ok {
		fx.reply("More topics:", interestButtons(selected, page)...)
		return fx
	}

	fx.reply("I didn't catch that. Tap one of the buttons or type the topic name.")
	fx.reply("Pick a topic:", interestButtons(selected, 0)...)
	return fx
}

func advanceToProfile(sub *models.Subscriber, fx *Effects) {
	selected := sub.Onboarding.SelectedInterests
	sub.Interests = selected
	sub.OnboardingState = models.StateSelectingProfile
	fx.Changed = true

	labels := make([]string, len(selected))
	for i, c := range selected {
		labels[i] = interestLabel(c)
	}
	fx.reply(fmt.Sprintf("✅ I'll focus on:\n%s\n\n%s",
		strings.Join(labels, "\n"), profileQuestion(selected)))
	fx.reply("What's your profile?", profileButtons()...)
}

// profileQuestion varies the micro-profiling prompt with the first topic the
// subscriber picked.
func profileQuestion(interests []models.Category) string {
	main := models.CategoryGeneral
	if len(interests) > 0 {
		main = interests[0]
	}
	switch main {
	case models.CategoryTech, models.CategoryCrypto:
		return "Nice, tech! 👨‍💻 To calibrate your digest: do you read out of curiosity, or do you work in the field?"
	case models.CategoryFinance:
		return "Great, finance! 📈 To tune things: do you follow out of curiosity, work in the field, or invest?"
	case models.CategoryPolitics:
		return "Got it, politics! 🏛️ Do you follow out of general interest, or do you work in the field?"
	default:
		return "Perfect! To calibrate your digest: do you read out of curiosity, or are you in the field?"
	}
}

func handleProfileSelection(sub *models.Subscriber, input string) Effects {
	var fx Effects

	var profile models.ProfileTag
	switch input {
	case "curious", "curiosity":
		profile = models.ProfileCurious
	case "professional", "work", "field":
		profile = models.ProfileProfessional
	case "investor", "invest", "investing":
		profile = models.ProfileInvestor
	}
	if profile == "" {
		fx.reply("I didn't catch that. Please pick one of the options:")
		fx.reply("What's your profile?", profileButtons()...)
		return fx
	}

	sub.Onboarding.Profile = profile
	sub.Profile = profile
	sub.OnboardingState = models.StateSelectingTone
	fx.Changed = true

	fx.reply(fmt.Sprintf("%s Got it! %s\n\nNow tell me: *do you prefer a serious or a casual tone?*",
		profileEmoji(profile), profileDescription(profile)))
	fx.reply("Which tone do you prefer?", toneButtons()...)
	return fx
}

func handleToneSelection(sub *models.Subscriber, input string) Effects {
	var fx Effects

	var tone models.Tone
	switch input {
	case "formal", "serious", "professional":
		tone = models.ToneFormal
	case "casual", "relaxed", "light":
		tone = models.ToneCasual
	}
	if tone == "" {
		fx.reply("I didn't catch that. Please pick one of the options:")
		fx.reply("Which tone do you prefer?", toneButtons()...)
		return fx
	}

	sub.Onboarding.Tone = tone
	sub.Tone = tone
	sub.OnboardingState = models.StateDemoSent
	fx.Changed = true
	fx.SendDemo = true

	icon := "📰"
	if tone == models.ToneCasual {
		icon = "😊"
	}
	fx.reply(fmt.Sprintf("%s Got it, *%s* it is.\n\n⏳ Hang on a moment, I'm preparing a trial digest of the last few hours for you...", icon, tone))
	return fx
}

func handlePostDemo(sub *models.Subscriber, input string) Effects {
	var fx Effects

	switch input {
	case "base", "basic", "plan 1", "1":
		return sendPaymentLink(sub, models.PlanBase)
	case "premium", "complete", "plan 2", "2":
		return sendPaymentLink(sub, models.PlanPremium)
	case "loved", "liked", "great", "nice":
		fx.reply("🎉 Glad you liked it!\n\n" +
			"Did you know the *Premium* plan also *reads the news out loud* for you? " +
			"Perfect for the car or the gym! 🎧")
		fx.reply("Choose your plan:", planButtons()...)
		return fx
	case "no", "later", "cancel", "not now":
		fx.reply("No problem! 😊\n\nWhenever you feel like subscribing, just send me a message.\nSee you!")
		return fx
	}

	fx.reply("Which plan do you prefer? Tap one of the options:")
	fx.reply("Choose your plan:", planButtons()...)
	return fx
}

func sendPaymentLink(sub *models.Subscriber, plan models.Plan) Effects {
	sub.Onboarding.PendingPlan = plan
	sub.OnboardingState = models.StateAwaitingPayment

	var fx Effects
	fx.Changed = true
	fx.reply(fmt.Sprintf("🔒 *Secure checkout link:*\n\nhttps://tindim.app/subscribe?plan=%s&phone=%s\n\n"+
		"_%s plan, 5 days free!_\n_Cancel anytime._", plan, sub.PhoneNumber, titleCase(string(plan))))
	return fx
}

func handleAwaitingPayment(sub *models.Subscriber, input string) Effects {
	var fx Effects

	switch input {
	case "paid", "done", "ready", "i paid":
		if sub.Active {
			sub.OnboardingState = models.StateActive
			fx.Changed = true
			fx.reply("✅ *Payment confirmed!*\n\n" +
				"Your subscription is active. Your first digest arrives tomorrow at 07:00!\n\n" +
				"Meanwhile, feel free to ask me anything about the news. 😊")
			return fx
		}
		fx.reply("⏳ I haven't received the payment confirmation yet.\n\n" +
			"If you already paid, give it a few seconds and try again.\nIf you need help, let me know!")
		return fx
	case "change", "change plan", "other plan":
		fx.reply("Choose your plan:", planButtons()...)
		return fx
	}

	fx.reply("I'm waiting for your payment confirmation. 😊\n\nIf you need a new link, just ask!")
	return fx
}

func handleActive(sub *models.Subscriber, input string) Effects {
	var fx Effects

	switch input {
	case "settings", "config", "configure", "preferences":
		sub.OnboardingState = models.StateConfiguring
		fx.Changed = true
		fx.reply("⚙️ *Settings*\n\nWhat would you like to change?",
			transport.Button{ID: "schedule", Title: "🕐 Delivery times"},
			transport.Button{ID: "interests", Title: "📚 Topics"},
		)
		return fx
	}

	// Active-state chat is handled elsewhere; reaching here means the router
	// had nothing better, so answer safely.
	fx.reply("You can change your preferences anytime by sending *settings*.")
	return fx
}

func handleConfiguring(sub *models.Subscriber, input string) Effects {
	var fx Effects

	switch input {
	case "schedule", "times", "delivery times":
		sub.OnboardingState = models.StateConfigSchedule
		fx.Changed = true
		fx.reply("🕐 At what times should your digest arrive?\n\n" +
			"Send the times separated by commas, like: *07:00, 19:00*")
		return fx
	case "interests", "topics":
		sub.OnboardingState = models.StateConfigInterests
		fx.Changed = true
		fx.reply("📚 Which topics do you want to follow?\n\n" +
			"Send them separated by commas, like: *tech, finance, sports*\n\n" +
			"Available: " + availableTopics())
		return fx
	case "cancel", "back", "done":
		sub.OnboardingState = models.StateActive
		fx.Changed = true
		fx.reply("👍 No changes made.")
		return fx
	}

	fx.reply("What would you like to change?",
		transport.Button{ID: "schedule", Title: "🕐 Delivery times"},
		transport.Button{ID: "interests", Title: "📚 Topics"},
	)
	return fx
}

func handleConfigSchedule(sub *models.Subscriber, input string) Effects {
	var fx Effects

	times := parseTimes(input)
	if len(times) == 0 {
		fx.reply("I couldn't read any valid time there. Send times like *07:00, 19:00*.")
		return fx
	}

	sub.PreferredTimes = times
	sub.OnboardingState = models.StateActive
	fx.Changed = true
	fx.reply(fmt.Sprintf("✅ Done! Your digest now arrives at *%s*.", strings.Join(times, ", ")))
	return fx
}

func handleConfigInterests(sub *models.Subscriber, input string) Effects {
	var fx Effects

	categories := parseCategories(input)
	if len(categories) == 0 {
		fx.reply("I couldn't match any topic there. Available: " + availableTopics())
		return fx
	}

	sub.Interests = categories
	sub.OnboardingState = models.StateActive
	fx.Changed = true

	labels := make([]string, len(categories))
	for i, c := range categories {
		labels[i] = interestLabel(c)
	}
	fx.reply("✅ Done! You now follow:\n" + strings.Join(labels, "\n"))
	return fx
}

// parseTimes extracts valid "HH:MM" tokens, deduplicated, in input order.
func parseTimes(input string) []string {
	var times []string
	seen := make(map[string]bool)
	for _, token := range splitList(input) {
		parsed, err := time.Parse("15:04", token)
		if err != nil {
			continue
		}
		normalized := parsed.Format("15:04")
		if !seen[normalized] {
			seen[normalized] = true
			times = append(times, normalized)
		}
	}
	return times
}

func parseCategories(input string) []models.Category {
	var categories []models.Category
	for _, token := range splitList(input) {
		category := matchInterest(token)
		if category == "" || containsCategory(categories, category) {
			continue
		}
		categories = append(categories, category)
	}
	return categories
}

func splitList(input string) []string {
	return strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n'
	})
}

func matchInterest(input string) models.Category {
	category := models.Category(strings.TrimSpace(input))
	if category.IsValid() {
		return category
	}
	return ""
}

func containsCategory(categories []models.Category, c models.Category) bool {
	for _, known := range categories {
		if known == c {
			return true
		}
	}
	return false
}

func interestLabel(c models.Category) string {
	for _, entry := range interestMenu {
		if entry.Category == c {
			return entry.Label
		}
	}
	return "📌 " + titleCase(string(c))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func availableTopics() string {
	names := make([]string, len(models.AllCategories))
	for i, c := range models.AllCategories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// interestButtons pages through the menu three at a time, skipping already
// selected topics. A "more" button appears while further pages exist.
func interestButtons(exclude []models.Category, page int) []transport.Button {
	var available []transport.Button
	for _, entry := range interestMenu {
		if containsCategory(exclude, entry.Category) {
			continue
		}
		available = append(available, transport.Button{ID: string(entry.Category), Title: entry.Label})
	}

	start := page * 2
	if start >= len(available) {
		return []transport.Button{{ID: "done", Title: "✅ Done"}}
	}
	end := start + 2
	if end > len(available) {
		end = len(available)
	}

	buttons := available[start:end]
	if end < len(available) {
		// The next page rides in the button ID so repeated taps keep paging.
		buttons = append(buttons, transport.Button{ID: fmt.Sprintf("more_%d", page+1), Title: "➡️ See more"})
	}
	return buttons
}

// morePage decodes a "see more" tap. A bare "more" (typed by hand) opens the
// second page; button taps carry an explicit page number.
func morePage(input string) (int, bool) {
	if input == "more" {
		return 1, true
	}
	rest, ok := strings.CutPrefix(input, "more_")
	if !ok {
		return 0, false
	}
	page, err := strconv.Atoi(rest)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

func interestButtonsWithDone(exclude []models.Category) []transport.Button {
	buttons := interestButtons(exclude, 0)
	if len(buttons) > 2 {
		buttons = buttons[:2]
	}
	return append(buttons, transport.Button{ID: "done", Title: "🚀 Build my digest!"})
}

func profileButtons() []transport.Button {
	return []transport.Button{
		{ID: "curious", Title: "🧐 Curious"},
		{ID: "professional", Title: "👨‍💻 I work in the field"},
		{ID: "investor", Title: "💰 I'm an investor"},
	}
}

func profileEmoji(p models.ProfileTag) string {
	switch p {
	case models.ProfileProfessional:
		return "👨‍💻"
	case models.ProfileInvestor:
		return "💰"
	default:
		return "🧐"
	}
}

func profileDescription(p models.ProfileTag) string {
	switch p {
	case models.ProfileProfessional:
		return "*Straight to the point, no fluff.*"
	case models.ProfileInvestor:
		return "*Focused on market impact and opportunities.*"
	default:
		return "*I'll explain technical terms in plain language.*"
	}
}

func toneButtons() []transport.Button {
	return []transport.Button{
		{ID: "formal", Title: "📰 Serious"},
		{ID: "casual", Title: "😊 Casual"},
	}
}

func planButtons() []transport.Button {
	return []transport.Button{
		{ID: "base", Title: "💼 Base - $4.90/mo"},
		{ID: "premium", Title: "🚀 Premium - $14.90/mo"},
	}
}
