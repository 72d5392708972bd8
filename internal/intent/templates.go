package intent

var templates = map[Tag]string{
	Report: `📊 **تحليل شامل للأداء**

{{context}}

**توصيات فورية:**
1. 🎯 تحسين معدل التحويل بنسبة 15-25%
2. 📈 زيادة الميزانية للحملات عالية الأداء
3. 🔄 إعادة استهداف الزوار السابقين

**الخطوة التالية:** دعني أحلل حملة محددة لتحسينها. أي حملة تريد التركيز عليها؟`,

	Content: `✨ **استراتيجية المحتوى المتقدمة**

بناءً على بياناتك:
{{context}}

**أفكار محتوى مربحة:**
• المحتوى التعليمي: +40% تفاعل
• قصص العملاء: +65% تحويل
• المحتوى التفاعلي: +30% مشاركة

**خطة 7 أيام:**
- اليوم 1-2: محتوى تعليمي
- اليوم 3-4: قصص نجاح
- اليوم 5-7: محتوى تفاعلي

هل تريد خطة مفصلة لمنصة معينة؟`,

	Campaign: `🎯 **تحسين الحملات الإعلانية**

تحليل الوضع الحالي:
{{context}}

**استراتيجية التحسين:**
1. **إعادة هيكلة الميزانية:** 70% للحملات عالية الأداء
2. **اختبار A/B:** عنوانين + صورتين مختلفتين
3. **الاستهداف الذكي:** lookalike audiences + retargeting

**ROI المتوقع:** +35% خلال 30 يوم

**بداية سريعة:** أي منصة تريد تحسين حملاتها أولاً؟`,

	SEO: `🔍 **استراتيجية SEO متقدمة**

**تحليل سريع:**
{{context}}

**خطة التحسين (90 يوم):**
- **الشهر الأول:** بحث الكلمات المفتاحية + تحسين المحتوى الحالي
- **الشهر الثاني:** إنشاء محتوى جديد مُحسَّن
- **الشهر الثالث:** بناء backlinks عالية الجودة

**نتائج متوقعة:** +50% زيارات أورغانيك

تريد أبدأ بتحليل موقعك أم بخطة الكلمات المفتاحية؟`,

	Social: `📱 **استراتيجية وسائل التواصل**

**تحليل الأداء:**
{{context}}

**خطة النمو الذكية:**
• **Instagram:** محتوى بصري + Stories تفاعلية
• **TikTok:** فيديوهات قصيرة trending
• **LinkedIn:** محتوى احترافي + networking

**أوقات النشر المثلى:**
- صباحاً: 8-10 ص
- مساءً: 7-9 م

**هدف شهري:** +25% متابعين جدد، +40% تفاعل

أي منصة أولوية لك الآن؟`,

	Email: `📧 **حملات الإيميل المتقدمة**

**تحليل الوضع:**
{{context}}

**استراتيجية الإيميل المربحة:**
1. **Welcome Series:** 5 رسائل ترحيبية
2. **Abandoned Cart:** استرداد +30% من المبيعات المفقودة
3. **Segmentation:** تقسيم ذكي حسب السلوك

**معدلات مستهدفة:**
- Open Rate: +25%
- Click Rate: +15%
- Conversion: +35%

تبي أبدأ بإعداد السيكوينس الترحيبي؟`,

	Conversion: `💰 **تحسين معدل التحويل**

**تحليل المسار الحالي:**
{{context}}

**نقاط التحسين الفورية:**
1. **صفحة الهبوط:** تحسين الCTA + إزالة التشتيت
2. **عملية الشراء:** تبسيط الخطوات (-50% خطوات)
3. **الثقة:** شهادات عملاء + ضمانات واضحة

**نتيجة متوقعة:** +20% تحويل خلال أسبوع

أي صفحة نبدأ بتحسينها؟`,

	General: `🤝 **مرحباً! أنا مورفو - رفيقك الذكي في التسويق**

**تحليل سريع لوضعك:**
{{context}}

**كيف يمكنني مساعدتك اليوم؟**

🎯 **التخصصات المتاحة:**
• تحليل شامل للأداء والإحصائيات
• استراتيجيات المحتوى المربح
• تحسين الحملات الإعلانية
• SEO وتحسين محركات البحث
• إدارة وسائل التواصل
• تحسين معدل التحويل
• حملات الإيميل ماركتنق

ما هو التحدي الأكبر اللي تواجهه في التسويق حالياً؟`,
}
