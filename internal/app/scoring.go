package app

import "classquiz-service/internal/domain"

// unanswered marks questions the student never selected an option for.
const unanswered = -1

// scoreAnswers aligns the submitted option indices with the quiz's ordered
// questions and counts correct selections. selected maps question position
// to option index. Missing or out-of-range selections score as wrong, never
// as an error, so a partial submission still produces a result.
func scoreAnswers(questions []domain.Question, selected map[int]int) ([]domain.Answer, int) {
	answers := make([]domain.Answer, 0, len(questions))
	score := 0
	for i, question := range questions {
		option, ok := selected[i]
		if !ok {
			option = unanswered
		}
		if option == question.CorrectAnswer {
			score++
		}
		answers = append(answers, domain.Answer{
			QuestionID:     question.ID,
			SelectedOption: option,
		})
	}
	return answers, score
}
