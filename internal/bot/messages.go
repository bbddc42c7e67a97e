package bot

import "fmt"

func welcomeMessage(name string) string {
	if name == "" {
		name = "User"
	}
	return fmt.Sprintf(`🚀 Welcome to Abdi WhatsApp Bot! Hello %s! 👋

*🚀 Ultra-Fast Media Downloader*

Download from *YouTube*, *Instagram*, *TikTok*, *Twitter*, *Facebook*, *Pinterest* and more!

✨ *Features:*
• HD Video Quality (up to 1080p)
• High-Quality Audio (320kbps)
• Image & Post Download
• No Watermarks
• Lightning Fast Download
• Smart Content Detection
• Auto-Format Selection

Choose an option below to get started! 👇

*Quick Commands:*
📥 Type *"download"* to start downloading
📲 Type *"qr"* for QR code generation
ℹ️ Type *"about"* for more info
🔔 Type *"subscribe"* for my channel

*Just send any link to get started!* ✨`, name)
}

const helpMessage = `💡 *Help & Documentation*

For detailed help and tutorials, visit:
🔗 https://abdifahadi.carrd.co

*Quick Commands:*
• *"start"* - Main menu
• *"download"* - Download instructions
• *"qr"* - QR code generator
• *"about"* - About me
• *"subscribe"* - My YouTube channel

*Just send a link to get started!* 🚀

Developed by @abdifahadi ✨`

const downloadMessage = `*📥 Send Your Link*

*Supported Platforms:*
🎬 *YouTube* - Video & Audio (all qualities)
📱 *Instagram* - Reels, Posts & Images
🎪 *TikTok* - Videos without watermark
🐦 *Twitter/X* - Videos, GIFs & Images
📘 *Facebook* - Videos, Posts & Images
📌 *Pinterest* - Videos & Images

*Just send any link and I'll handle the rest automatically!* ✨`

const qrMessage = `*📲 QR Code Generator*

Send me any text or link and I will generate a QR code for you.

✨ *Features:*
• High-quality QR codes
• Custom branding with @abdifahadi
• Professional design
• Instant generation

Just send your text or link now! 📱`

const aboutMessage = `*I'm Abdi Fahadi — a curious mind juggling YouTube, coding, app creation, gaming, editing, and design. I create what I feel, when I feel — turning passion into pixels and ideas into reality.*

✨ *Stay connected — follow me on socials and join the journey!*

🔗 *My Links:*
📺 YouTube: https://abdi.oia.bio/fahadi
📸 Instagram: https://abdi.oia.bio/fahadi-insta
📘 Facebook: https://fb.openinapp.co/hb407
🎵 TikTok: https://tk.openinapp.link/abdifahadi
🐦 Twitter (X): https://x.openinapp.co/abdifahadi
🎮 Discord: https://dc.openinapp.co/abdifahadi

Type *"menu"* to go back to main menu.`

const subscribeMessage = `🔔 *Subscribe to my channel for amazing content!*

📺 YouTube Channel: https://abdi.oia.bio/fahadi

Stay updated with:
• Tech tutorials
• App development
• Gaming content
• Creative projects
• And much more!

Type *"menu"* to go back to main menu.`

const unsupportedMessage = `❌ *Unsupported Platform*

Sorry, this platform is not supported yet.

Supported: YouTube, Instagram, TikTok, Twitter, Facebook, Pinterest`

const spotifyMessage = `🎵 *Spotify Links*

Spotify tracks can't be downloaded directly.

Send the song name instead, for example:
*ytsearch:artist - song title*

I'll find and download the audio for you! 🎧`

const rateLimitMessage = `⏳ *Slow Down a Little*

You've hit the request limit for now. Please wait a minute and try again.`

const qrFailureMessage = `❌ *QR Generation Failed*

Sorry, I couldn't generate your QR code right now. Please try again later.

Type *"menu"* to go back to main menu.`

func fallbackMessage(name, text string) string {
	if name == "" {
		name = "User"
	}
	if len(text) > 100 {
		text = text[:100] + "..."
	}
	return fmt.Sprintf(`👋 Hello %s!

I received your message: "%s"

💡 *Try these commands:*
• *start* - Main menu
• *help* - All commands
• *download* - Download instructions
• *qr* - Generate QR codes

Or send any link for media download! 🚀`, name, text)
}
