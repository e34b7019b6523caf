package assistant

import (
	"math/rand"
	"strings"
	"time"
)

// category groups keywords with canned responses and a specialist
// recommendation. Responses are chosen uniformly at random; there is
// no model inference behind any of this.
type category struct {
	Name       string
	Keywords   []string
	Responses  []string
	Specialist string
}

var categories = []category{
	{
		Name:       "headache",
		Keywords:   []string{"headache", "migraine", "head pain", "dizzy", "dizziness"},
		Specialist: "Neurologist",
		Responses: []string{
			"Headaches can have many causes, from dehydration to tension. If it persists for more than a few days or is unusually severe, please consult a specialist.",
			"Try resting in a dark, quiet room and staying hydrated. Recurring or worsening headaches are worth discussing with a neurologist.",
			"Frequent headaches may be linked to stress, eye strain, or sleep patterns. A neurologist can help identify the underlying cause.",
		},
	},
	{
		Name:       "fever",
		Keywords:   []string{"fever", "temperature", "chills", "shivering"},
		Specialist: "General Physician",
		Responses: []string{
			"A mild fever usually resolves on its own with rest and fluids. If it exceeds 103°F (39.4°C) or lasts more than three days, see a doctor.",
			"Monitor your temperature and stay hydrated. Persistent or high fever should be evaluated by a general physician.",
			"Fever is often your body fighting an infection. Seek medical attention if you also have a rash, stiff neck, or difficulty breathing.",
		},
	},
	{
		Name:       "respiratory",
		Keywords:   []string{"cough", "breathing", "breath", "wheezing", "chest congestion", "cold", "sore throat"},
		Specialist: "Pulmonologist",
		Responses: []string{
			"Coughs and congestion often accompany viral infections. If breathing becomes difficult or symptoms last over two weeks, consult a pulmonologist.",
			"Warm fluids and rest help most respiratory symptoms. Shortness of breath or chest tightness warrants prompt medical attention.",
			"Persistent respiratory symptoms can indicate asthma, allergies, or infection. A specialist can run the right tests.",
		},
	},
	{
		Name:       "digestive",
		Keywords:   []string{"stomach", "nausea", "vomiting", "diarrhea", "constipation", "indigestion", "acidity"},
		Specialist: "Gastroenterologist",
		Responses: []string{
			"Digestive discomfort is often diet-related and temporary. If symptoms persist beyond a week, a gastroenterologist can help.",
			"Stay hydrated and eat light, bland meals. Severe abdominal pain or blood in stool needs immediate medical attention.",
			"Recurring stomach issues may point to food intolerances or gastritis. Keep a food diary and consult a specialist.",
		},
	},
	{
		Name:       "skin",
		Keywords:   []string{"rash", "itching", "itchy", "skin", "acne", "eczema", "hives"},
		Specialist: "Dermatologist",
		Responses: []string{
			"Skin irritation often responds to gentle moisturizers and avoiding harsh soaps. A spreading or painful rash should be seen by a dermatologist.",
			"Avoid scratching and note any new products or foods that preceded the symptoms. A dermatologist can identify the trigger.",
			"Many skin conditions look alike but need different treatments. A dermatologist's examination is the reliable way to tell.",
		},
	},
}

var generalFallback = category{
	Name:       "general",
	Specialist: "General Physician",
	Responses: []string{
		"I couldn't match your symptoms to a specific category. A general physician is the best starting point for an evaluation.",
		"Thanks for sharing. For symptoms like these, booking a consultation with a general physician is recommended.",
		"I'd suggest describing your symptoms in more detail to a general physician, who can refer you to a specialist if needed.",
	},
}

var moods = []string{"happy", "sad", "neutral"}

// Classifier matches free text against the keyword dictionary. The
// rand source is injectable so tests can pin the chosen response.
type Classifier struct {
	rng *rand.Rand
}

func NewClassifier() *Classifier {
	return &Classifier{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func NewSeededClassifier(seed int64) *Classifier {
	return &Classifier{rng: rand.New(rand.NewSource(seed))}
}

type Assessment struct {
	Category   string `json:"category"`
	Response   string `json:"response"`
	Specialist string `json:"specialist"`
}

// Classify returns the first category whose keyword appears in the
// message, falling back to the general category.
func (c *Classifier) Classify(message string) Assessment {
	lowered := strings.ToLower(message)
	for _, cat := range categories {
		for _, keyword := range cat.Keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				return Assessment{
					Category:   cat.Name,
					Response:   cat.Responses[c.rng.Intn(len(cat.Responses))],
					Specialist: cat.Specialist,
				}
			}
		}
	}
	return Assessment{
		Category:   generalFallback.Name,
		Response:   generalFallback.Responses[c.rng.Intn(len(generalFallback.Responses))],
		Specialist: generalFallback.Specialist,
	}
}

// Mood returns a uniformly random mood label.
func (c *Classifier) Mood() string {
	return moods[c.rng.Intn(len(moods))]
}
