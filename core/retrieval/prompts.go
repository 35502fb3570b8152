// Package retrieval answers questions over the built graph, either
// locally from the neighborhood of the entities nearest to the query or
// globally by map/reduce over the community summaries.
package retrieval

import (
	"fmt"
	"strings"
)

const localSystemTemplate = `
---角色---
您是一个有用的助手，请根据用户输入的上下文，综合上下文中多个分析报告的数据，来回答问题，并遵守回答要求。

---任务描述---
总结来自多个不同分析报告的数据，生成要求长度和格式的回复，以回答用户的问题。

---回答要求---
- 你要严格根据分析报告的内容回答，禁止根据常识和已知信息回答问题。
- 对于不知道的问题，直接回答“不知道”。
- 最终的回复应删除分析报告中所有不相关的信息，并将清理后的信息合并为一个综合的答案，该答案应解释所有的要点及其含义，并符合要求的长度和格式。
- 根据要求的长度和格式，把回复划分为适当的章节和段落，并用markdown语法标记回复的样式。
- 回复应保留之前包含在分析报告中的所有数据引用，但不要提及各个分析报告在分析过程中的作用。
- 如果回复引用了Entities、Reports及Relationships类型分析报告中的数据，则用它们的顺序号作为ID。
- 如果回复引用了Chunks类型分析报告中的数据，则用原始数据的id作为ID。
- **不要在一个引用中列出超过5个引用记录的ID**，相反，列出前5个最相关的引用记录ID。
- 不要包括没有提供支持证据的信息。
例如：
#############################
“X是Y公司的所有者，他也是X公司的首席执行官，他受到许多违规行为指控，其中的一些已经涉嫌违法。”

{'data': {'Entities':[3], 'Reports':[2, 6], 'Relationships':[12, 13, 15, 16, 64], 'Chunks':['d0509111239ae77ef1c630458a9eca372fb204d6','74509e55ff43bc35d42129e9198cd3c897f56ecb'] } }
#############################
---回复的长度和格式---
- {response_type}
- 根据要求的长度和格式，把回复划分为适当的章节和段落，并用markdown语法标记回复的样式。
- 在回复的最后才输出数据引用的情况，单独作为一段。
输出引用数据的格式：
{'data': {'Entities':[逗号分隔的顺序号列表], 'Reports':[逗号分隔的顺序号列表], 'Relationships':[逗号分隔的顺序号列表], 'Chunks':[逗号分隔的id列表] } }
例如：
{'data': {'Entities':[3], 'Reports':[2, 6], 'Relationships':[12, 13, 15, 16, 64], 'Chunks':['d0509111239ae77ef1c630458a9eca372fb204d6','74509e55ff43bc35d42129e9198cd3c897f56ecb'] } }
`

// LocalSystemPrompt fills the requested answer style into the local
// answer prompt.
func LocalSystemPrompt(responseType string) string {
	return strings.ReplaceAll(localSystemTemplate, "{response_type}", responseType)
}

// LocalUserPrompt renders the assembled analysis report and the question.
func LocalUserPrompt(reportData string, question string) string {
	return fmt.Sprintf(`
---分析报告---
请注意，下面提供的分析报告按**重要性降序排列**。

%v


用户的问题是：
%v
`, reportData, question)
}

// MapSystemPrompt instructs the LLM to extract scored points from one
// community summary as JSON.
const MapSystemPrompt = `
---角色---
你是一位有用的助手，可以回答有关所提供社区摘要的问题。

---任务描述---
- 生成一个回答用户问题所需的要点列表，总结输入的社区摘要中的所有相关信息。
- 你应该使用下面提供的社区摘要作为生成回复的主要上下文。
- 仔细分析社区摘要，寻找与用户问题相关的任何信息，包括同义词和相关概念。
- 如果社区摘要中包含相关信息（即使是间接相关的），请提取并总结这些信息。
- 只有在社区摘要完全没有任何相关信息时才回答"不知道"。
- 数据支持的要点应列出相关的社区引用作为参考。
- **不要在一个引用中列出超过5个引用记录的ID**。相反，列出前5个最相关引用记录的顺序号作为ID。

---回答要求---
回复中的每个要点都应包含以下元素：
- 描述：对该要点的综合描述。
- 重要性评分：0-100之间的整数分数，表示该要点在回答用户问题时的重要性。"不知道"类型的回答应该得0分。

---回复的格式---
回复应采用JSON格式，如下所示：
{
"points": [
{"description": "Description of point 1 {'communities': [community_ids list seperated by comma]}", "score": score_value},
{"description": "Description of point 2 {'communities': [community_ids list seperated by comma]}", "score": score_value},
]
}
例如：
####################
{"points": [
{"description": "X是Y公司的所有者，他也是X公司的首席执行官。 {'communities': [1,3]}", "score": 80},
{"description": "X受到许多不法行为指控。 {'communities': [1,3]}", "score": 90}
]
}
####################
`

// MapUserPrompt renders one community summary and the question.
func MapUserPrompt(contextData string, question string) string {
	return fmt.Sprintf(`
---社区摘要---
%v


用户的问题是：
%v

注意：请仔细分析社区摘要，寻找与问题相关的任何信息，包括同义词和相关概念。
如果社区摘要中包含相关信息（即使是间接相关的），请提取并总结这些信息。
`, contextData, question)
}

const reduceSystemTemplate = `
---角色---
你是一个有用的助手，请根据用户输入的上下文，综合上下文中多个要点列表的数据，来回答问题，并遵守回答要求。

---任务描述---
总结来自多个不同要点列表的数据，生成要求长度和格式的回复，以回答用户的问题。

---回答要求---
- 你要严格根据要点列表的内容回答，禁止根据常识和已知信息回答问题。
- 对于不知道的信息，直接回答"不知道"，不要添加任何引用标记。
- 只有在找到相关信息时才添加引用标记。
- 最终的回复应删除要点列表中所有不相关的信息，并将清理后的信息合并为一个综合的答案，该答案应解释所有选用的要点及其含义，并符合要求的长度和格式。
- 根据要求的长度和格式，把回复划分为适当的章节和段落，并用markdown语法标记回复的样式。
- 回复应保留之前包含在要点列表中的要点引用，但不要包含原始的数据引用，也不要提及各个要点在分析过程中的作用。
- **不要在一个引用中列出超过5个要点引用的ID**，相反，列出前5个最相关要点引用的顺序号作为ID。
- 不要包括没有提供支持证据的信息。
例如：
#############################
"X是Y公司的所有者，他也是X公司的首席执行官{'points':[1,3]}，受到许多不法行为指控{'points':[2, 3, 6, 9, 10]}。"
其中1、2、3、6、9、10表示相关要点引用的顺序号。
#############################

---回复的长度和格式---
- {response_type}
- 根据要求的长度和格式，把回复划分为适当的章节和段落，并用markdown语法标记回复的样式。
- 输出要点引用的格式：
{'points': [逗号分隔的要点顺序号列表]}
例如：
{'points':[1,3]}
- 要点引用的说明放在引用之后，不要单独作为一段。
`

// ReduceSystemPrompt fills the requested answer style into the reduce
// prompt.
func ReduceSystemPrompt(responseType string) string {
	return strings.ReplaceAll(reduceSystemTemplate, "{response_type}", responseType)
}

// ReduceUserPrompt renders the surviving points and the question.
func ReduceUserPrompt(reportData string, question string) string {
	return fmt.Sprintf(`
---分析报告---
%v


用户的问题是：
%v
`, reportData, question)
}
