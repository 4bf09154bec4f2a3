/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import "github.com/Seednode/truthordare/domain"

type pool map[domain.Kind]map[domain.Mode]map[domain.Tier][]string

// fallbackPool is consulted whenever the provider cannot be used. Every
// (kind, mode, tier) cell must stay non-empty.
var fallbackPool = pool{
	domain.KindTruth: {
		domain.ModeFriends: {
			domain.TierEasy: {
				"What's the most unhinged thing you believed as a kid?",
				"Which friend here would definitely survive the apocalypse and why?",
				"What's your most cursed autocorrect moment?",
				"If you could only eat one food for life, what's your ride-or-die meal?",
				"What's the weirdest fever dream you've ever had?",
				"Who in this friend group has the most embarrassing tea about you?",
				"What's your most questionable Spotify Wrapped moment?",
				"Which friend here gives off main character energy?",
			},
			domain.TierMedium: {
				"What's the most chaotic thing you did in school that still haunts you?",
				"Have you ever fake-liked something just to fit in? Spill the tea.",
				"What's your most cringe night out story?",
				"What secret are you lowkey keeping from your bestie right now?",
				"When did you last talk behind someone's back and immediately regret it?",
				"What's the most toxic friend behavior you've witnessed?",
				"Have you ever ghosted a friend? Why?",
			},
			domain.TierExtreme: {
				"What's the most illegal thing you've done with this friend group? No cap.",
				"Have you ever hooked up with someone in this room? Don't lie.",
				"What's the biggest friendship betrayal you've experienced?",
				"What would make you instantly cut off a friend?",
				"Have you ever been secretly jealous of a friend's glow up?",
				"Have you ever spread someone's business when you shouldn't have?",
			},
		},
		domain.ModeCrush: {
			domain.TierEasy: {
				"What's your dream first date vibe? Spill.",
				"What catches your attention first when someone's cute?",
				"Do you actually believe in love at first sight or nah?",
				"What personality trait makes you catch feelings instantly?",
				"What's your biggest dating app ick?",
				"Would you rather slide into DMs or have someone slide into yours?",
			},
			domain.TierMedium: {
				"What's the most cringe thing you've done trying to impress a crush?",
				"What's the absolute worst pickup line someone tried on you?",
				"Tell us about your most awkward dating app meetup.",
				"Ever been caught simping in public? What happened?",
				"Have you ever stalked someone's socials before a date?",
			},
			domain.TierExtreme: {
				"What's the most chaotic place you've hooked up? No judgment.",
				"Have you ever been in a love triangle? Spill the drama.",
				"What's the most scandalous thing in your dating history?",
				"Ever hooked up with your ex's friend? How messy did it get?",
				"What's the wildest dating app story you've never told anyone?",
			},
		},
		domain.ModeSpouse: {
			domain.TierEasy: {
				"What's one thing your partner does that still gives you butterflies?",
				"When did you know you wanted to spend your life together?",
				"What's your favorite memory from your wedding or proposal?",
				"What's the sweetest thing your partner has ever done?",
			},
			domain.TierMedium: {
				"What annoyed you about your partner at first but now you love?",
				"What's your biggest fear about your marriage?",
				"What's something you wish you could change about your partner?",
				"What's the biggest sacrifice you've made for your relationship?",
			},
			domain.TierExtreme: {
				"What's your biggest regret in your marriage?",
				"What's something you've never told your partner?",
				"If you could relive your single days for one week, would you?",
				"What's the most hurtful thing your partner has ever said to you?",
			},
		},
	},
	domain.KindDare: {
		domain.ModeFriends: {
			domain.TierEasy: {
				"Do your best impression of someone in this friend group!",
				"Sing happy birthday like you're a viral TikToker!",
				"Do 20 jumping jacks while reciting the alphabet backwards!",
				"Take the most unhinged selfie and show everyone!",
				"Talk in a cursed accent for the next 3 rounds!",
				"Do the cringiest dance trend you know!",
			},
			domain.TierMedium: {
				"Call a pizza place and ask if they deliver to Mars!",
				"Post a throwback photo captioned 'felt cute might delete later'!",
				"Let someone pick a contact and text them 'bestie we need to talk'!",
				"Wear something backwards for the rest of the game!",
				"Do your best influencer pitch for something random in the room!",
			},
			domain.TierExtreme: {
				"Text your ex asking if they miss you (screenshot required)!",
				"Let the group write and post a chaotic social media post for you!",
				"Eat whatever cursed food combination the group creates!",
				"Call someone random from your contacts and catch up like besties!",
				"Text your crush something bold (the group writes it)!",
			},
		},
		domain.ModeCrush: {
			domain.TierEasy: {
				"Show us how you'd slide into your dream crush's DMs!",
				"Try your most rizz-filled pickup line on someone imaginary!",
				"Serenade an imaginary crush with the cheesiest love song!",
				"Do a main character slow dance by yourself!",
			},
			domain.TierMedium: {
				"Text your crush a genuine compliment (screenshot it)!",
				"Post a soft launch photo on your story!",
				"Write and perform a love poem that doesn't completely suck!",
				"Recreate the most romantic movie scene you know!",
			},
			domain.TierExtreme: {
				"Call your ex and tell them one thing you actually miss!",
				"Spill your wildest romantic fantasy to the group!",
				"Do a dramatic, over-the-top seductive dance (clothes stay on)!",
				"Post 'looking for a bf/gf' on your story and leave it for 10 minutes!",
			},
		},
		domain.ModeSpouse: {
			domain.TierEasy: {
				"Recreate your first dance together!",
				"Tell everyone why you fell in love with your partner!",
				"Show us how you proposed or were proposed to!",
				"Sing your wedding song together!",
			},
			domain.TierMedium: {
				"Tell everyone your partner's most embarrassing habit!",
				"Act out your worst fight as a comedy sketch!",
				"Do an impression of your partner when they're angry!",
				"Tell everyone about your partner's worst cooking disaster!",
			},
			domain.TierExtreme: {
				"Share your most intimate relationship secret!",
				"Reveal something you've always wanted to tell your partner!",
				"Tell everyone about the time you were angriest with your partner!",
				"Share the most embarrassing thing your partner did in front of family!",
			},
		},
	},
}
