package bot

const welcomeText = `🤖 **Welcome!**

To start chatting, you need to authenticate:

**Option 1:** Enter the access password
**Option 2:** Enter your API key (Anthropic keys start with ` + "`sk-ant-`" + `, OpenAI keys with ` + "`sk-`" + `)

Simply send your password or API key as the next message.

📝 **Commands:**
• ` + "`/start`" + ` - Start or restart the bot
• ` + "`/reset`" + ` - Clear conversation history
• ` + "`/help`" + ` - Show the help message

After authentication, just send any message to chat!`

const helpText = `📚 **Help**

**Commands:**
• ` + "`/start`" + ` - Start or restart authentication
• ` + "`/reset`" + ` - Clear conversation history
• ` + "`/help`" + ` - Show this help message

**How to use:**
1. Start with /start
2. Authenticate with the password or your API key
3. Send any message to chat
4. Use /reset to clear conversation history

**Tips:**
• The assistant remembers your conversation context
• Long conversations are automatically trimmed
• Sessions expire after a period of inactivity

**Privacy:**
• Your API key is kept only for your session
• Conversations are not logged`

const (
	authRequiredText   = "❌ Please authenticate first using /start"
	resetConfirmText   = "✅ Conversation history cleared. Starting fresh!"
	unknownCommandText = "Unknown command. Send /help to see what I understand."
	authSuccessText    = "✅ **Authentication successful!**\n\nYou can now start chatting. Just send any message!"
	invalidKeyText     = "❌ Invalid API key. Please check and try again."
	invalidAuthText    = "❌ Invalid password or API key. Please try again or use /start to see options."
	reconfigureText    = "❌ No API key is bound to your session. Please restart with /start"
	thinkingText       = "🤔 Thinking..."
	chatFailurePrefix  = "❌ Error: "
	chatFailureSuffix  = "\n\nPlease try again or use /reset to clear the conversation."
)

// systemPrompt is the fixed instruction sent with every completion.
const systemPrompt = `You are a helpful AI assistant chatting with a user through Telegram.
Be conversational, helpful, and engaging. Keep responses concise but informative, suitable for a chat interface.
You can use Telegram markdown formatting: *bold*, _italic_, ` + "`code`, ```code blocks```"
