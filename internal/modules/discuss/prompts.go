package discuss

import (
	"fmt"
	"strings"

	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/vector"
)

// userAction labels what the user is doing when they talk to the
// assistant. It conditions both classification and answering.
const userAction = "浏览学术内容"

const (
	intentQuestion = "提问"
	intentNoReply  = "无需回复"
)

const actionPromptTemplate = `
你是AI学术助理，有一个用户正在跟你对话，客户当前正在%s，请判断用户的问题的意图以及本次对话是否需要查询文献。

对话背景信息：
%s

对话历史：
%s

用户的问题：
%s

首先，请判断用户的问题实际上表达的是什么意图：
1. 如果用户正在咨询学术方面的问题，或对历史对话内容进行进一步的追问，那么用户的意图是"提问"
2. 如果用户发表了一个学术观点，请对他的观点进行评价，那么用户的意图是"发表观点"
3. 如果用户对之前的历史回答表示质疑，并且提出了他的看法，那么用户的意图是"质疑且需要回复"
4. 如果用户只是表达质疑，那么用户的意图是"质疑"
5. 如果用户只是表达肯定，那么用户的意图是"肯定"
6. 如果用户的表达没有特定意图，或者可能只是发表了感叹，那么意图是"无需回复"

其次，如果用户的意图是1-5（即需要我们进行回复），我们回答用户问题时还要判断是否需要查询更多文献：
1. 如果根据背景信息和对话历史，足以回答用户的问题，那么不需要查询更多文献
2. 如果根据背景信息和对话历史，不足以回答用户的问题，那么需要查询更多文献，请根据用户的问题给出查询文献的请求

请进行上述两项判断，并以JSON格式回复，JSON格式如下：
{
    "intention": "提问" | "发表观点" | "质疑且需要回复" | "质疑" | "肯定" | "无需回复",
    "need_search": true | false,
    "search_query": "查询文献的请求"
}

请直接输出JSON数据，不要输出任何解释。
`

const answerPromptTemplate = `
你是AI学术助理，有一个用户正在跟你对话，客户当前正在%s，请根据用户的问题给出回答。

背景信息：
%s

文献内容检索结果：
%s

对话历史：
%s

用户的问题：
%s

用户提问的意图是：
%s

回复用户的语言是：%s

根据用户的不同意图进行回复：
1. "提问"：请用专业、准确、友好的语言回答用户的问题，充分结合背景信息和查询到的文献内容。
2. "发表观点"：请结合背景信息和文献内容，判断用户的观点，并给出你对于用户观点的看法。
3. "质疑且需要回复"：对于用户的质疑，结合用户提出的看法，给出你的回复，你可以坚持自己的观点也可以调整自己的观点。
4. "质疑"：对于用户的质疑，结合背景信息和文献内容，进一步阐述你的观点。
5. "肯定"：请根据用户的问题给出你的回复。
6. "无需回复"：则不再进行更多判断直接回复一个空字符串。

回复客户的原则如下：
1. 请用专业、准确、友好的语言回答用户的问题。
2. 如果检索结果中包含相关信息，请确保引用相应的来源。
3. 不要使用背景信息或者文献内容检索中没有的文献材料作为回答的依据。
4. 回答应当简洁明了，并且针对用户的具体问题提供有用的信息，在实在没有回答思路时，可以回复用户"抱歉，这方面问题我暂时还没有一个清晰的回答思路"，用你的语言表达类似的含义。
`

func actionPrompt(background, history, query string) string {
	return fmt.Sprintf(actionPromptTemplate, userAction, background, history, query)
}

func answerPrompt(background, results, history, query, intention, targetLang string) string {
	return fmt.Sprintf(answerPromptTemplate, userAction, background, results, history, query, intention, targetLang)
}

// formatHistory renders prior turns the way the answer prompt expects:
// user lines single-spaced, assistant replies followed by a blank line.
func formatHistory(nodes []models.DiscussModel) string {
	var b strings.Builder
	for _, node := range nodes {
		if node.Role == models.RoleUser {
			fmt.Fprintf(&b, "用户: %s\n", node.Content)
		} else {
			fmt.Fprintf(&b, "AI助理: %s\n\n", node.Content)
		}
	}
	return b.String()
}

// formatHits renders retrieval results as citable blocks keyed by the
// library reference id.
func formatHits(hits []vector.Hit) string {
	var b strings.Builder
	for i, hit := range hits {
		id := hit.ReferenceID
		if id == 0 {
			id = int64(i + 1)
		}
		fmt.Fprintf(&b, "[%d] \n%s\n\n", id, hit.Text)
	}
	return b.String()
}
