package checker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medscreen/medscreen/internal/knowledge"
)

// Input limits enforced before any scoring happens.
const (
	MaxSymptomsPerRequest = 20
	MaxAge                = 150
)

var validSexes = map[string]bool{
	"male": true, "female": true, "other": true,
}

// Service runs the symptom analysis pipeline and owns session state.
type Service struct {
	kb       *knowledge.Base
	tunables Tunables
	sessions SessionStore
	locks    *keyedMutex
	log      zerolog.Logger
}

// NewService builds the engine with the given scoring constants. Callers that
// have no reason to deviate pass DefaultTunables().
func NewService(kb *knowledge.Base, sessions SessionStore, t Tunables, log zerolog.Logger) *Service {
	return &Service{
		kb:       kb,
		tunables: t,
		sessions: sessions,
		locks:    newKeyedMutex(),
		log:      log.With().Str("component", "checker").Logger(),
	}
}

// Suggestions returns the curated symptom chips for the input UI.
func (s *Service) Suggestions() []string {
	return s.kb.Suggestions()
}

// SynonymCount reports the size of the alias index, shown in the input UI as
// a hint of how forgiving free-text entry is.
func (s *Service) SynonymCount() int {
	return s.kb.AliasCount()
}

// ValidateRequest normalizes and checks the caller's input in place. Invalid
// demographics are dropped rather than rejected; an empty or oversized
// symptom list is an error.
func (s *Service) ValidateRequest(req *AnalysisRequest) error {
	cleaned := make([]string, 0, len(req.Symptoms))
	for _, sym := range req.Symptoms {
		if sym = strings.TrimSpace(sym); sym != "" {
			cleaned = append(cleaned, sym)
		}
	}
	req.Symptoms = cleaned
	if len(req.Symptoms) == 0 {
		return fmt.Errorf("at least one symptom is required")
	}
	if len(req.Symptoms) > MaxSymptomsPerRequest {
		return fmt.Errorf("too many symptoms: at most %d per request", MaxSymptomsPerRequest)
	}
	if req.Age != nil && (*req.Age < 0 || *req.Age > MaxAge) {
		req.Age = nil
	}
	req.Sex = strings.ToLower(strings.TrimSpace(req.Sex))
	if !validSexes[req.Sex] {
		req.Sex = ""
	}
	return nil
}

// Analyze runs a fresh analysis round and opens a session for follow-ups.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if err := s.ValidateRequest(&req); err != nil {
		return nil, err
	}
	result := s.run(req, nil)

	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		Symptoms:  req.Symptoms,
		Age:       req.Age,
		Sex:       req.Sex,
		Severity:  req.SeverityMap,
		Duration:  req.DurationMap,
		Answers:   map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		// Analysis is still valid without a session; follow-ups will fall
		// back to self-contained requests.
		s.log.Warn().Err(err).Msg("failed to persist session")
	} else {
		result.SessionID = sess.ID
	}
	return result, nil
}

// Refine folds follow-up answers into a previous analysis. When the session
// is unknown or expired the request is answered as a fresh self-contained
// analysis and flagged accordingly.
func (s *Service) Refine(ctx context.Context, req RefineRequest) (*AnalysisResult, error) {
	if req.SessionID == "" {
		if err := s.ValidateRequest(&req.AnalysisRequest); err != nil {
			return nil, err
		}
		result := s.run(req.AnalysisRequest, req.Answers)
		return result, nil
	}

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	sess, err := s.sessions.Get(ctx, req.SessionID)
	if err == ErrSessionNotFound {
		if verr := s.ValidateRequest(&req.AnalysisRequest); verr != nil {
			return nil, fmt.Errorf("session expired and request is not self-contained: %w", verr)
		}
		result := s.run(req.AnalysisRequest, req.Answers)
		result.SessionContinuityLost = true
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if sess.Answers == nil {
		sess.Answers = map[string]string{}
	}
	for id, answer := range req.Answers {
		sess.Answers[id] = answer
	}
	// New symptoms reported alongside answers extend the session.
	if len(req.Symptoms) > 0 {
		sess.Symptoms = mergeSymptoms(sess.Symptoms, req.Symptoms)
	}
	if req.Age != nil {
		sess.Age = req.Age
	}
	if req.Sex != "" {
		sess.Sex = req.Sex
	}
	sess.Severity = mergeMaps(sess.Severity, req.SeverityMap)
	sess.Duration = mergeMaps(sess.Duration, req.DurationMap)
	sess.UpdatedAt = time.Now().UTC()

	merged := AnalysisRequest{
		Symptoms:    sess.Symptoms,
		Age:         sess.Age,
		Sex:         sess.Sex,
		SeverityMap: sess.Severity,
		DurationMap: sess.Duration,
	}
	if err := s.ValidateRequest(&merged); err != nil {
		return nil, err
	}
	result := s.run(merged, sess.Answers)
	result.SessionID = sess.ID

	if err := s.sessions.Put(ctx, sess); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to update session")
	}
	return result, nil
}

// EndSession discards a session. Ending an unknown session is not an error.
func (s *Service) EndSession(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	return s.sessions.Delete(ctx, id)
}

// run is the scoring pipeline shared by Analyze and Refine. It is pure with
// respect to the knowledge base and never touches the session store.
func (s *Service) run(req AnalysisRequest, answers map[string]string) *AnalysisResult {
	concepts, expansionLog := expandSymptoms(s.kb, s.tunables, req.Symptoms)

	alerts := DetectEmergencies(s.kb, s.tunables, concepts)

	var results []DiseaseResult
	crisis := false
	for _, d := range s.kb.Diseases() {
		raw, matched := scoreDisease(s.kb, s.tunables, d, concepts, req.SeverityMap, req.DurationMap)
		// Diseases with no matched symptoms never surface, regardless of
		// follow-up answers.
		if raw == 0 {
			continue
		}

		factor, notes := adjustDemographics(d, req.Age, req.Sex)
		adjusted := raw * factor

		boosted, diseaseCrisis := applyAnswers(s.kb, d, answers, adjusted)
		if diseaseCrisis {
			crisis = true
		}
		if boosted == 0 {
			continue
		}

		conf := confidence(s.tunables, d, boosted, len(concepts))
		results = append(results, DiseaseResult{
			ID:                   d.ID,
			Name:                 d.Name,
			Icon:                 d.Icon,
			BodySystem:           d.BodySystem,
			BodySystemIcon:       d.BodySystemIcon,
			Confidence:           conf,
			Score:                boosted,
			MatchedSymptoms:      matched,
			SymptomCount:         len(matched),
			TotalSymptomsChecked: len(d.Symptoms),
			Urgency:              urgencyFor(s.tunables, conf),
			Triage:               triageFor(d, boosted, conf),
			DemographicNotes:     notes,
			Description:          d.Description,
			HasFollowups:         len(d.Questions) > 0,
		})
	}
	sortResults(results)

	if crisis {
		alerts = append(alerts, crisisAlert())
	}

	var unrecognized []string
	for _, e := range expansionLog {
		if !e.Understood {
			unrecognized = append(unrecognized, e.Original)
		}
	}

	result := &AnalysisResult{
		State:             StateAnalyzed,
		InputSymptoms:     req.Symptoms,
		ExpansionLog:      expansionLog,
		Unrecognized:      unrecognized,
		Diseases:          results,
		BodySystemGroups:  groupBySystem(results),
		Emergency:         len(alerts) > 0,
		EmergencyAlerts:   alerts,
		FollowupQuestions: GenerateFollowups(s.kb, s.tunables, results, answers),
		Demographics:      Demographics{Age: req.Age, Sex: req.Sex},
		NoStrongMatches:   len(results) == 0,
		DiseasesScreened:  s.kb.DiseaseCount(),
		Disclaimer:        s.kb.Disclaimer(),
	}
	result.Advice = adviceFor(result.Emergency, results)
	return result
}

// crisisAlert is the alert appended when a follow-up answer indicates a
// mental health crisis, independent of any scored condition.
func crisisAlert() EmergencyAlert {
	return EmergencyAlert{
		Name:     "Crisis Support",
		Message:  "Your answers suggest you may be in crisis. You are not alone and help is available right now.",
		Action:   "Call or text 988 (Suicide & Crisis Lifeline) immediately, or go to the nearest emergency department.",
		Severity: "critical",
	}
}

func mergeSymptoms(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(extra))
	for _, s := range existing {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	for _, s := range extra {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func mergeMaps(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		base[k] = v
	}
	return base
}
