package knowledge

// Built-in knowledge base. Pure data, no logic: keeping it separate from the
// loader makes updates reviewable and leaves the door open for serving it
// from a database later. Weights are authored on a 0.5-3.0 importance scale
// and normalized into (0,1] by the loader.

// builtinSynonyms maps common user phrases to canonical symptom concepts.
var builtinSynonyms = map[string]string{
	// Breathing
	"cant breathe": "shortness of breath", "can't breathe": "shortness of breath",
	"hard to breathe": "shortness of breath", "breathing difficulty": "shortness of breath",
	"trouble breathing": "shortness of breath", "gasping": "shortness of breath",
	"out of breath": "shortness of breath", "breathless": "shortness of breath",
	"winded": "shortness of breath", "suffocating": "shortness of breath",
	// Chest
	"chest hurts": "chest pain", "chest ache": "chest pain",
	"heart hurts": "chest pain", "pressure in chest": "chest tightness",
	"heavy chest": "chest tightness", "chest squeeze": "chest tightness",
	// Urination
	"peeing a lot": "frequent urination", "pee a lot": "frequent urination",
	"always urinating": "frequent urination", "constant urination": "frequent urination",
	"blood when peeing": "blood in urine", "bloody urine": "blood in urine",
	"foamy pee": "foamy urine", "bubbly urine": "foamy urine",
	"dark pee": "dark urine", "brown urine": "dark urine",
	"pee less": "decreased urination", "not peeing": "decreased urination",
	// Thirst / hunger
	"very thirsty": "excessive thirst", "always thirsty": "excessive thirst",
	"drink a lot of water": "excessive thirst", "parched": "excessive thirst",
	"always hungry": "increased hunger", "eating a lot": "increased hunger",
	// Fatigue / energy
	"always tired": "fatigue", "no energy": "fatigue", "exhausted": "fatigue",
	"worn out": "fatigue", "drained": "fatigue", "weak": "fatigue",
	"lethargic": "fatigue", "sluggish": "fatigue",
	// Vision
	"blurry vision": "blurred vision", "cant see clearly": "blurred vision",
	"fuzzy vision": "blurred vision", "vision problems": "blurred vision",
	// Heart
	"heart racing": "rapid heartbeat", "fast heartbeat": "rapid heartbeat",
	"heart fluttering": "heart palpitations", "skipped heartbeat": "irregular heartbeat",
	"pounding heart": "heart palpitations", "heartbeat irregular": "irregular heartbeat",
	// Mental health
	"feeling sad": "persistent sadness", "feeling down": "persistent sadness",
	"feeling blue": "persistent sadness", "feel depressed": "persistent sadness",
	"no motivation": "low motivation", "dont care anymore": "loss of interest",
	"lost interest": "loss of interest", "no interest": "loss of interest",
	"cant concentrate": "difficulty concentrating", "brain fog": "difficulty concentrating",
	"cant focus": "difficulty concentrating", "memory loss": "memory problems",
	"forgetful": "memory problems", "feeling hopeless": "hopelessness",
	"feeling worthless": "worthlessness", "feel guilty": "guilt",
	"cant sleep": "insomnia", "trouble sleeping": "sleep problems",
	"sleeping too much": "oversleeping", "mood changes": "mood swings",
	"nervous": "anxiety", "worried": "anxiety", "panic": "anxiety",
	"feel alone": "loneliness", "feel empty": "feeling empty",
	"withdrawn": "social withdrawal", "isolated": "social withdrawal",
	"crying a lot": "crying spells",
	// Pain
	"head hurts": "headaches", "headache": "headaches", "migraine": "headaches",
	"back hurts": "back pain", "lower back hurts": "lower back pain",
	"arm hurts": "arm pain", "left arm hurts": "left arm pain",
	"jaw hurts": "jaw pain", "shoulder hurts": "shoulder pain",
	"body hurts": "body aches", "aching body": "body aches",
	// Swelling
	"feet swollen": "swollen ankles", "legs swollen": "swollen legs",
	"ankles swollen": "swollen ankles", "puffy face": "puffy eyes",
	"swollen face": "puffy eyes", "bloated": "swelling",
	// Skin
	"itching": "itchy skin", "skin itching": "itchy skin",
	"dry patches": "dry skin", "skin dry": "dry skin",
	"dark patches": "darkened skin", "skin darkening": "darkened skin",
	// Digestive
	"throwing up": "vomiting", "feel sick": "nausea", "queasy": "nausea",
	"no appetite": "loss of appetite", "not hungry": "loss of appetite",
	"constipated": "constipation", "blocked up": "constipation",
	// Weight
	"losing weight": "unexplained weight loss", "weight dropping": "unexplained weight loss",
	"weight loss": "unexplained weight loss",
	"gaining weight": "weight gain", "putting on weight": "weight gain",
	// Movement / neuro
	"hard to walk": "difficulty walking", "slurred speech": "speech changes",
	"cant speak properly": "speech changes",
	// Other
	"dizzy": "dizziness", "lightheaded": "lightheadedness", "passed out": "fainting",
	"fainted": "fainting", "pins and needles": "tingling",
	"numb hands": "numbness in hands", "numb feet": "numbness in feet",
	"numb": "numbness", "sweaty": "cold sweats", "night sweats": "cold sweats",
	"dehydrated": "dehydration", "wounds not healing": "slow healing wounds",
	"cuts not healing": "slow healing wounds", "sweet breath": "sweet smelling breath",
	"fruity breath": "sweet smelling breath", "metallic mouth": "metallic taste",
	"taste metal": "metallic taste", "muscle cramp": "muscle cramps",
	"leg cramps": "muscle cramps", "bp high": "high blood pressure",
	"hypertension": "high blood pressure", "infections often": "frequent infections",
	"yeast infection": "yeast infections", "irritable": "irritability",
	"stressed": "stress", "restless": "restlessness", "agitated": "restlessness",
}

// builtinRules are the red-flag emergency combinations, evaluated against the
// normalized symptom set independently of disease scoring.
var builtinRules = []EmergencyRule{
	{
		Name:          "Possible Heart Attack",
		Required:      []string{"chest pain"},
		Supporting:    []string{"shortness of breath", "cold sweats", "left arm pain", "jaw pain", "nausea"},
		MinSupporting: 1,
		Message: "Your symptoms may indicate a cardiac emergency. Please call emergency services (911) " +
			"immediately or have someone drive you to the nearest emergency room.",
		Action: "Call 911 / Emergency Services NOW",
	},
	{
		Name:          "Possible Stroke",
		Required:      []string{"numbness"},
		Supporting:    []string{"difficulty concentrating", "dizziness", "difficulty walking", "speech changes"},
		MinSupporting: 1,
		Message: "These symptoms could indicate a stroke. Remember FAST: Face drooping, Arm weakness, " +
			"Speech difficulty, Time to call 911.",
		Action: "Call 911 / Emergency Services NOW",
	},
	{
		Name:          "Diabetic Emergency",
		Required:      []string{"sweet smelling breath"},
		Supporting:    []string{"nausea", "vomiting", "excessive thirst", "frequent urination", "dehydration"},
		MinSupporting: 2,
		Message: "These symptoms may indicate diabetic ketoacidosis (DKA), a medical emergency. " +
			"Seek immediate medical attention.",
		Action: "Go to Emergency Room Immediately",
	},
	{
		Name:          "Severe Cardiac Symptoms",
		Required:      []string{"irregular heartbeat", "fainting"},
		Supporting:    []string{"chest pain", "shortness of breath", "dizziness"},
		MinSupporting: 0,
		Message: "Irregular heartbeat combined with fainting requires immediate medical evaluation. " +
			"Do not drive yourself.",
		Action: "Call 911 / Emergency Services NOW",
	},
	{
		Name:          "Suicidal Crisis Indicators",
		Required:      []string{"hopelessness", "worthlessness"},
		Supporting:    []string{"social withdrawal", "insomnia", "loss of interest", "feeling empty"},
		MinSupporting: 2,
		Message: "If you or someone you know is in crisis, please contact the 988 Suicide & Crisis " +
			"Lifeline by calling or texting 988. Help is available 24/7.",
		Action: "Call/Text 988 Now",
	},
}

// CrisisRuleName identifies the rule appended when a follow-up answer trips
// the crisis marker and no crisis alert has fired yet.
const CrisisRuleName = "Suicidal Crisis Indicators"

// builtinDiseases are the screenable conditions with raw symptom weights.
var builtinDiseases = []DiseaseProfile{
	{
		ID:             "heart",
		Name:           "Heart Disease",
		Icon:           "heart",
		BodySystem:     "Cardiovascular",
		BodySystemIcon: "cardio",
		Symptoms: map[string]float64{
			"chest pain": 3, "chest tightness": 3, "shortness of breath": 2.5,
			"irregular heartbeat": 3, "heart palpitations": 2.5, "dizziness": 1.5,
			"fatigue": 1, "swollen legs": 2, "swollen ankles": 2, "cold sweats": 2,
			"nausea": 1, "jaw pain": 2, "arm pain": 2.5, "left arm pain": 3,
			"shoulder pain": 1.5, "high blood pressure": 2, "rapid heartbeat": 2.5,
			"fainting": 2, "lightheadedness": 1.5, "chest discomfort": 2.5,
			"difficulty breathing": 2, "wheezing": 1, "back pain": 0.5, "numbness": 1,
		},
		UrgencyThreshold: 6,
		Description: "Symptoms suggest possible cardiovascular concerns. Heart disease risk factors " +
			"include high blood pressure, cholesterol, smoking, and family history.",
		AgeModifier: &AgeModifier{MinAge: 45, Factor: 1.2},
		SexModifier: map[string]float64{"male": 1.15, "female": 1.0},
		Questions: []FollowUpQuestion{
			{
				ID: "pain_radiation", DiseaseID: "heart", Type: QuestionYesNo,
				Text:   "Does the chest pain radiate to your arm, jaw, or back?",
				Boosts: map[string]map[string]float64{"yes": {"left arm pain": 2, "jaw pain": 1.5}},
			},
			{
				ID: "exertion_trigger", DiseaseID: "heart", Type: QuestionYesNo,
				Text:   "Do your symptoms worsen with physical exertion?",
				Boosts: map[string]map[string]float64{"yes": {"chest pain": 1, "shortness of breath": 1}},
			},
			{
				ID: "family_history", DiseaseID: "heart", Type: QuestionYesNo,
				Text:   "Do you have a family history of heart disease?",
				Boosts: map[string]map[string]float64{"yes": {GlobalBoostKey: 1.2}},
			},
		},
	},
	{
		ID:             "diabetes",
		Name:           "Diabetes",
		Icon:           "stethoscope",
		BodySystem:     "Endocrine",
		BodySystemIcon: "endocrine",
		Symptoms: map[string]float64{
			"frequent urination": 3, "excessive thirst": 3, "increased hunger": 2.5,
			"unexplained weight loss": 2.5, "blurred vision": 2, "fatigue": 1.5,
			"slow healing wounds": 2.5, "tingling hands": 2,
			"tingling feet": 2, "numbness in hands": 2, "numbness in feet": 2,
			"dry skin": 1, "frequent infections": 2, "darkened skin": 1.5,
			"yeast infections": 1.5, "irritability": 1, "sweet smelling breath": 3,
			"nausea": 1, "vomiting": 1, "dehydration": 2, "weight gain": 1.5,
			"numbness": 1.5, "tingling": 2,
		},
		UrgencyThreshold: 5,
		Description: "Symptoms align with possible blood sugar irregularities. Diabetes risk increases " +
			"with obesity, inactivity, family history, and age.",
		AgeModifier: &AgeModifier{MinAge: 40, Factor: 1.15},
		SexModifier: map[string]float64{"male": 1.05, "female": 1.0},
		Questions: []FollowUpQuestion{
			{
				ID: "wound_healing", DiseaseID: "diabetes", Type: QuestionYesNo,
				Text:   "Have you noticed cuts or wounds healing more slowly than usual?",
				Boosts: map[string]map[string]float64{"yes": {"slow healing wounds": 2}},
			},
			{
				ID: "vision_change", DiseaseID: "diabetes", Type: QuestionYesNo,
				Text:   "Have you experienced any sudden changes in your vision?",
				Boosts: map[string]map[string]float64{"yes": {"blurred vision": 1.5}},
			},
			{
				ID: "family_diabetes", DiseaseID: "diabetes", Type: QuestionYesNo,
				Text:   "Does anyone in your family have diabetes?",
				Boosts: map[string]map[string]float64{"yes": {GlobalBoostKey: 1.15}},
			},
		},
	},
	{
		ID:             "kidney",
		Name:           "Kidney Disease",
		Icon:           "kidney",
		BodySystem:     "Renal",
		BodySystemIcon: "renal",
		Symptoms: map[string]float64{
			"swollen legs": 2.5, "swollen ankles": 2.5, "puffy eyes": 2.5,
			"frequent urination": 2, "decreased urination": 3, "blood in urine": 3,
			"foamy urine": 3, "dark urine": 2, "fatigue": 1.5, "nausea": 1.5,
			"vomiting": 1.5, "loss of appetite": 1.5, "muscle cramps": 2,
			"back pain": 2, "lower back pain": 2.5, "high blood pressure": 2,
			"difficulty sleeping": 1, "dry skin": 1, "itchy skin": 2,
			"metallic taste": 2, "shortness of breath": 1.5, "swelling": 2,
			"dehydration": 1.5, "unexplained weight loss": 1,
		},
		UrgencyThreshold: 5,
		Description: "Symptoms may indicate kidney function concerns. Risk factors include diabetes, " +
			"high blood pressure, heart disease, and family history.",
		AgeModifier: &AgeModifier{MinAge: 50, Factor: 1.1},
		SexModifier: map[string]float64{"male": 1.05, "female": 1.0},
		Questions: []FollowUpQuestion{
			{
				ID: "urine_change", DiseaseID: "kidney", Type: QuestionSelect,
				Text:    "Have you noticed any changes in your urine (color, foaminess, frequency)?",
				Options: []string{"Darker than usual", "Foamy/bubbly", "Much less output", "No changes"},
				Boosts: map[string]map[string]float64{
					"Darker than usual": {"dark urine": 2},
					"Foamy/bubbly":      {"foamy urine": 2},
					"Much less output":  {"decreased urination": 2},
				},
			},
			{
				ID: "swelling_location", DiseaseID: "kidney", Type: QuestionSelect,
				Text:    "Where do you notice swelling the most?",
				Options: []string{"Around eyes", "Ankles/feet", "Hands", "No swelling"},
				Boosts: map[string]map[string]float64{
					"Around eyes": {"puffy eyes": 2},
					"Ankles/feet": {"swollen ankles": 2},
				},
			},
		},
	},
	{
		ID:             "depression",
		Name:           "Depression",
		Icon:           "brain",
		BodySystem:     "Mental Health",
		BodySystemIcon: "mental",
		Symptoms: map[string]float64{
			"persistent sadness": 3, "hopelessness": 3,
			"loss of interest": 3, "fatigue": 2, "sleep problems": 2.5,
			"insomnia": 2.5, "oversleeping": 2, "appetite changes": 2,
			"difficulty concentrating": 2.5, "anxiety": 2,
			"irritability": 2, "restlessness": 1.5, "guilt": 2,
			"worthlessness": 3, "social withdrawal": 2.5, "low energy": 2,
			"low motivation": 2.5, "crying spells": 2, "body aches": 1,
			"headaches": 1, "memory problems": 1.5, "mood swings": 2,
			"feeling empty": 3, "loneliness": 2, "stress": 1.5,
		},
		UrgencyThreshold: 5,
		Description: "Symptoms align with potential mood or mental health concerns. Depression is a " +
			"common, treatable condition affecting millions worldwide.",
		SexModifier: map[string]float64{"male": 1.0, "female": 1.1},
		Questions: []FollowUpQuestion{
			{
				ID: "duration", DiseaseID: "depression", Type: QuestionSelect,
				Text:    "How long have you been feeling this way?",
				Options: []string{"Less than 2 weeks", "2-4 weeks", "1-3 months", "More than 3 months"},
				Boosts: map[string]map[string]float64{
					"2-4 weeks":          {GlobalBoostKey: 1.1},
					"1-3 months":         {GlobalBoostKey: 1.2},
					"More than 3 months": {GlobalBoostKey: 1.3},
				},
			},
			{
				ID: "daily_impact", DiseaseID: "depression", Type: QuestionYesNo,
				Text:   "Are these feelings affecting your daily activities (work, relationships)?",
				Boosts: map[string]map[string]float64{"yes": {GlobalBoostKey: 1.2}},
			},
			{
				ID: "self_harm", DiseaseID: "depression", Type: QuestionYesNo,
				Text:   "Have you had any thoughts of harming yourself?",
				Boosts: map[string]map[string]float64{"yes": {CrisisBoostKey: 1}},
			},
		},
	},
}

// builtinSuggestions is the quick-pick symptom list surfaced to UI chips.
var builtinSuggestions = []string{
	"Chest Pain", "Shortness of Breath", "Fatigue", "Frequent Urination",
	"Excessive Thirst", "Blurred Vision", "Persistent Sadness", "Insomnia",
	"Swollen Ankles", "Dizziness", "Nausea", "Back Pain",
	"Heart Palpitations", "Weight Loss", "Difficulty Concentrating",
	"Blood in Urine", "Anxiety", "Numbness", "Headaches",
	"High Blood Pressure", "Loss of Appetite", "Sleep Problems",
	"Cold Sweats", "Jaw Pain", "Left Arm Pain", "Vomiting", "Tingling",
	"Mood Swings", "Memory Problems", "Loss of Interest", "Foamy Urine",
	"Itchy Skin", "Slow Healing Wounds",
}

const builtinDisclaimer = "IMPORTANT: This health analysis is for informational and educational " +
	"purposes only. It does NOT constitute medical advice, diagnosis, or treatment. Always consult " +
	"a qualified healthcare professional for proper evaluation. If you are experiencing a medical " +
	"emergency, call 911 immediately."
