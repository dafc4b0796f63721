package crew

// 内置 crew 名称。
const (
	NewsDigest  = "news_digest"
	ContentPack = "content_pack"
)

// 内置任务键，ParseContentOutput 依赖这些名称定位文章与帖子。
const (
	TaskRetrieveNews  = "retrieve_news"
	TaskSummarizeNews = "summarize_news"
	TaskCreateContent = "create_content"
	TaskGeneratePosts = "generate_social_media_posts"
)

// 内置工具名称。
const (
	ToolSearch = "search"
	ToolScrape = "scrape"
)

// DefaultNewsDigest 是三段式新闻处理流程：检索、摘要、撰写。
func DefaultNewsDigest() Definition {
	return Definition{
		Name: NewsDigest,
		Agents: map[string]AgentSpec{
			"news_retriever": {
				Key:       "news_retriever",
				Role:      "News Retriever",
				Goal:      "Find the most recent and relevant news articles about {topic}",
				Backstory: "An expert researcher skilled at finding credible news sources",
				Tools:     []string{ToolSearch},
			},
			"news_summarizer": {
				Key:       "news_summarizer",
				Role:      "News Summarizer",
				Goal:      "Create concise and informative summaries of retrieved news articles",
				Backstory: "A linguistic expert who can distill complex news into clear, digestible summaries",
			},
			"content_creator": {
				Key:       "content_creator",
				Role:      "Content Creator",
				Goal:      "Generate engaging and well-structured news content",
				Backstory: "A creative writer who transforms news summaries into compelling narratives",
			},
		},
		Tasks: []TaskSpec{
			{
				Key:            TaskRetrieveNews,
				Description:    "Research and retrieve the latest news articles about {topic}",
				ExpectedOutput: "A comprehensive list of recent news articles with titles, sources, and key details",
				Agent:          "news_retriever",
			},
			{
				Key:            TaskSummarizeNews,
				Description:    "Summarize the retrieved news articles, highlighting key points and insights",
				ExpectedOutput: "Concise summaries of each news article, capturing the essential information",
				Agent:          "news_summarizer",
			},
			{
				Key:            TaskCreateContent,
				Description:    "Create an engaging and informative article based on the news summaries",
				ExpectedOutput: "A well-written, comprehensive article that provides context and insight",
				Agent:          "content_creator",
			},
		},
	}
}

// DefaultContentPack 是四段式内容生产流程，最后一步输出社交平台帖子。
func DefaultContentPack() Definition {
	return Definition{
		Name: ContentPack,
		Agents: map[string]AgentSpec{
			"news_retriever_agent": {
				Key:       "news_retriever_agent",
				Role:      "Senior News Researcher",
				Goal:      "Uncover the latest, most credible news about {subject}",
				Backstory: "A seasoned researcher who knows which outlets to trust and how to verify a story before it is used.",
				Tools:     []string{ToolSearch, ToolScrape},
			},
			"summarizer_agent": {
				Key:       "summarizer_agent",
				Role:      "News Summarizer",
				Goal:      "Distil the research on {subject} into accurate, neutral summaries",
				Backstory: "A former wire-service editor who can compress any story without losing the facts.",
				Tools:     []string{ToolSearch},
			},
			"content_creator_agent": {
				Key:       "content_creator_agent",
				Role:      "Content Writer",
				Goal:      "Write an engaging markdown article about {subject}",
				Backstory: "A long-form writer who turns summaries into well-structured stories with context and insight.",
			},
			"social_media_posts_agent": {
				Key:       "social_media_posts_agent",
				Role:      "Social Media Strategist",
				Goal:      "Promote the article about {subject} on the major social platforms",
				Backstory: "A strategist who adapts one story to the voice and limits of each platform.",
			},
		},
		Tasks: []TaskSpec{
			{
				Key:            TaskRetrieveNews,
				Description:    "Search for the latest news about {subject}. Identify the most relevant articles and collect their key facts, sources and publication dates.",
				ExpectedOutput: "A list of the most relevant recent articles about {subject} with title, source, URL and key facts.",
				Agent:          "news_retriever_agent",
			},
			{
				Key:            TaskSummarizeNews,
				Description:    "Summarize each article found about {subject}, highlighting the main points and why they matter.",
				ExpectedOutput: "A concise summary per article, followed by a short overall synthesis.",
				Agent:          "summarizer_agent",
			},
			{
				Key:            TaskCreateContent,
				Description:    "Write a complete article about {subject} based on the summaries. Use markdown headings and cite sources inline.",
				ExpectedOutput: "A markdown article of four to six paragraphs about {subject}.",
				Agent:          "content_creator_agent",
			},
			{
				Key:            TaskGeneratePosts,
				Description:    "Create social media posts promoting the article about {subject} for LinkedIn, Twitter and Facebook.",
				ExpectedOutput: `A JSON object {"article": <the article from the previous task, unchanged>, "social_media_posts": [{"platform": <name>, "content": <post text>}]}.`,
				Agent:          "social_media_posts_agent",
				OutputJSON:     true,
			},
		},
	}
}
