package datasource

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// sampleNamespace derives stable ids for the sample bank so repeated seeding
// is idempotent.
var sampleNamespace = uuid.MustParse("6f1c2a9e-4b7d-4c1e-9a53-2d8e7f0b1c64")

type sampleQuestion struct {
	category model.Category
	text     string
	answers  []string
	correct  int
}

var sampleBank = []sampleQuestion{
	{model.CategoryRoadSign, "What does a red octagonal sign mean?",
		[]string{"Stop completely", "Slow down", "Give way to the right"}, 0},
	{model.CategoryRoadSign, "A triangular sign with a red border usually indicates:",
		[]string{"A warning of a hazard ahead", "A mandatory instruction", "Information about services"}, 0},
	{model.CategoryRoadSign, "A circular sign with a blue background gives:",
		[]string{"A prohibition", "A mandatory instruction", "A warning"}, 1},
	{model.CategoryRoadSign, "What does an inverted triangle sign mean?",
		[]string{"No entry", "Give way", "Roundabout ahead"}, 1},
	{model.CategoryRoadSign, "A red circle with a number inside shows:",
		[]string{"The minimum speed", "The distance to the next town", "The maximum speed limit"}, 2},
	{model.CategoryRoadSign, "A sign showing children walking warns of:",
		[]string{"A school or children crossing ahead", "A playground for drivers", "A pedestrian-only street"}, 0},
	{model.CategoryRoadSign, "A red circle with a white horizontal bar means:",
		[]string{"Road works", "No entry for all vehicles", "End of speed limit"}, 1},
	{model.CategoryRoadSign, "A sign with a zigzag arrow warns of:",
		[]string{"A double bend ahead", "A slippery road", "A lane merge"}, 0},
	{model.CategoryRoadRule, "At an uncontrolled junction you should give way to:",
		[]string{"Vehicles on your left", "Vehicles on your right", "The larger vehicle"}, 1},
	{model.CategoryRoadRule, "When may you overtake on the left?",
		[]string{"Never", "When the vehicle ahead is turning right and there is room", "Whenever the left lane is empty"}, 1},
	{model.CategoryRoadRule, "What is the safe following distance in good conditions?",
		[]string{"At least a two-second gap", "One car length", "Half a second"}, 0},
	{model.CategoryRoadRule, "When entering a roundabout you must give way to:",
		[]string{"Traffic already on the roundabout", "Traffic entering after you", "Pedestrians only"}, 0},
	{model.CategoryRoadRule, "A solid white centre line means:",
		[]string{"You may cross to overtake", "You must not cross or straddle it", "Parking is allowed"}, 1},
	{model.CategoryRoadRule, "What should you do when an emergency vehicle approaches with sirens?",
		[]string{"Speed up to clear the way", "Stop in the middle of the road", "Move aside safely and let it pass"}, 2},
	{model.CategoryRoadRule, "At a zebra crossing with a pedestrian waiting you should:",
		[]string{"Sound your horn", "Stop and let them cross", "Continue if they have not stepped out"}, 1},
	{model.CategoryRoadRule, "A flashing amber traffic light means:",
		[]string{"Proceed with caution", "Stop and wait for green", "The light is broken, ignore it"}, 0},
	{model.CategoryRoadRule, "When turning right at a junction you should position your vehicle:",
		[]string{"Close to the left kerb", "Just left of the centre line", "In the oncoming lane"}, 1},
	{model.CategoryGeneral, "Which documents must you carry while driving?",
		[]string{"Driving licence", "Passport", "Birth certificate"}, 0},
	{model.CategoryGeneral, "What is the main effect of alcohol on driving?",
		[]string{"Sharper reactions", "Slower reactions and poor judgement", "Better night vision"}, 1},
	{model.CategoryGeneral, "When should you check your mirrors?",
		[]string{"Only when reversing", "Before signalling and changing speed or direction", "Once every trip"}, 1},
	{model.CategoryGeneral, "What should you do if you feel tired while driving?",
		[]string{"Open the window and continue", "Stop somewhere safe and rest", "Drive faster to arrive sooner"}, 1},
	{model.CategoryGeneral, "Tyre pressure should be checked:",
		[]string{"When the tyres are cold", "Right after a long drive", "Only at annual inspection"}, 0},
	{model.CategoryGeneral, "Using a hand-held phone while driving is:",
		[]string{"Allowed at low speed", "Prohibited", "Allowed at traffic lights"}, 1},
	{model.CategoryGeneral, "In heavy rain your stopping distance:",
		[]string{"Stays the same", "Is shorter", "Can be at least doubled"}, 2},
}

// SampleQuestions returns the built-in sample bank with stable ids.
func SampleQuestions() []model.Question {
	out := make([]model.Question, len(sampleBank))
	for i, s := range sampleBank {
		qID := uuid.NewSHA1(sampleNamespace, []byte(s.text))
		answers := make([]model.Answer, len(s.answers))
		for j, text := range s.answers {
			answers[j] = model.Answer{
				ID:         uuid.NewSHA1(qID, []byte(strconv.Itoa(j))),
				QuestionID: qID,
				Text:       text,
				IsCorrect:  j == s.correct,
			}
		}
		out[i] = model.Question{
			ID:       qID,
			Text:     s.text,
			Category: s.category,
			Answers:  answers,
		}
	}
	return out
}
