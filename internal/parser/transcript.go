package parser

import "strings"

const (
	InterviewerLabel = "AI Interviewer:"
	CandidateLabel   = "Candidate:"
)

// Speaker 转写行所属说话人
type Speaker int

const (
	SpeakerNone Speaker = iota
	SpeakerInterviewer
	SpeakerCandidate
)

// Turn 单行分类结果；Speaker 为 SpeakerNone 表示续行
type Turn struct {
	Speaker Speaker
	Text    string
}

// QAPair 一问一答
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ClassifyLines 按行首标签给每个非空行打标
func ClassifyLines(text string) []Turn {
	var turns []Turn
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, InterviewerLabel):
			turns = append(turns, Turn{Speaker: SpeakerInterviewer, Text: strings.TrimSpace(strings.TrimPrefix(line, InterviewerLabel))})
		case strings.HasPrefix(line, CandidateLabel):
			turns = append(turns, Turn{Speaker: SpeakerCandidate, Text: strings.TrimSpace(strings.TrimPrefix(line, CandidateLabel))})
		default:
			turns = append(turns, Turn{Speaker: SpeakerNone, Text: line})
		}
	}
	return turns
}

// ParseTranscript 把打标后的行折叠成有序问答。
// 面试官行开启新问题；候选人行写入答案，同一问题下多次出现则拼接；
// 无标签行续到当前说话人；第一个面试官行之前的内容丢弃
func ParseTranscript(text string) []QAPair {
	var (
		pairs   []QAPair
		current *QAPair
		speaker = SpeakerNone
	)
	flush := func() {
		if current != nil && current.Question != "" {
			pairs = append(pairs, *current)
		}
	}

	for _, t := range ClassifyLines(text) {
		switch t.Speaker {
		case SpeakerInterviewer:
			flush()
			current = &QAPair{Question: t.Text}
			speaker = SpeakerInterviewer
		case SpeakerCandidate:
			if current == nil {
				continue
			}
			current.Answer = joinText(current.Answer, t.Text)
			speaker = SpeakerCandidate
		default:
			if current == nil {
				continue
			}
			switch speaker {
			case SpeakerInterviewer:
				current.Question = joinText(current.Question, t.Text)
			case SpeakerCandidate:
				current.Answer = joinText(current.Answer, t.Text)
			}
		}
	}
	flush()
	return pairs
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
